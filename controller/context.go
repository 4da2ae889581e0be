package controller

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	e "github.com/microcosm-collective/pantry/errors"
	h "github.com/microcosm-collective/pantry/helpers"
)

// Context carries the request being served and writes the response
type Context struct {
	Request        *http.Request
	ResponseWriter http.ResponseWriter
	RouteVars      map[string]string
	StartTime      time.Time
	IP             net.IP
}

// StandardResponse is the envelope for error responses. Successful reads
// are written as the bare data.
type StandardResponse struct {
	Status int         `json:"status"`
	Data   interface{} `json:"data"`
	Errors []string    `json:"error"`
}

// MakeContext returns the context for a request
func MakeContext(request *http.Request, responseWriter http.ResponseWriter) *Context {
	return &Context{
		Request:        request,
		ResponseWriter: responseWriter,
		RouteVars:      mux.Vars(request),
		StartTime:      time.Now(),
		IP:             GetRequestIP(request),
	}
}

// GetRequestIP returns the address of the client
func GetRequestIP(request *http.Request) net.IP {
	host, _, _ := net.SplitHostPort(request.RemoteAddr)
	return net.ParseIP(host)
}

// GetHTTPMethod returns the request method
func (c *Context) GetHTTPMethod() string {
	return c.Request.Method
}

// GetInt64RouteVar parses a numeric route variable
func (c *Context) GetInt64RouteVar(key string) (int64, error) {
	id, err := strconv.ParseInt(c.RouteVars[key], 10, 64)
	if err != nil {
		return 0, e.New(
			"controller.GetInt64RouteVar",
			e.InvalidRequest,
			fmt.Sprintf("The supplied %s ('%s') is not a number.", key, c.RouteVars[key]),
			err,
		)
	}
	return id, nil
}

func (c *Context) setHeaders(statusCode int) {
	c.ResponseWriter.Header().Set("Content-Type", "application/json")
	c.ResponseWriter.Header().Set("Access-Control-Allow-Origin", "*")

	if statusCode == http.StatusOK && c.GetHTTPMethod() == http.MethodGet {
		// Public, cache for a short while
		c.ResponseWriter.Header().Set(`Cache-Control`, `public, max-age=60`)
	} else {
		c.ResponseWriter.Header().Set(`Cache-Control`, `no-cache, max-age=0`)
	}
}

// Respond writes the error envelope
func (c *Context) Respond(data interface{}, statusCode int, errors []string) error {
	obj := StandardResponse{
		Status: statusCode,
		Data:   data,
		Errors: errors,
	}

	output, err := json.Marshal(obj)
	if err != nil {
		http.Error(c.ResponseWriter, err.Error(), http.StatusInternalServerError)
		return err
	}

	c.setHeaders(statusCode)
	return c.WriteResponse(output, statusCode)
}

// WriteResponse does the job of writing the response
func (c *Context) WriteResponse(output []byte, statusCode int) error {
	// Prevent chunking
	c.ResponseWriter.Header().Set("Content-Length", strconv.Itoa(len(output)))
	c.ResponseWriter.WriteHeader(statusCode)

	// HEAD requests return no body
	if c.GetHTTPMethod() == http.MethodHead {
		return nil
	}

	_, err := c.ResponseWriter.Write(output)
	if err == nil {
		return nil
	}

	// "broken pipe" is the client disconnecting, which is expected but is
	// logged in case many clients do it at once
	if stderrors.Is(err, syscall.EPIPE) {
		glog.Warningf(
			"Error writing %s response to %s : %+v",
			c.GetHTTPMethod(),
			c.Request.URL.String(),
			err,
		)
		return err
	}

	glog.Errorf(
		"Error writing %s response to %s : %+v",
		c.GetHTTPMethod(),
		c.Request.URL.String(),
		err,
	)
	return err
}

// RespondWithOptions answers an OPTIONS request
func (c *Context) RespondWithOptions(options []string) error {
	c.ResponseWriter.Header().Set("Allow", strings.Join(options, ","))
	c.ResponseWriter.Header().Set("Content-Length", "0")
	c.ResponseWriter.WriteHeader(http.StatusOK)
	return nil
}

// RespondWithStatus responds with a status code and an empty envelope
func (c *Context) RespondWithStatus(statusCode int) error {
	return c.Respond(nil, statusCode, nil)
}

// RespondWithError responds with the status and its description as the error
func (c *Context) RespondWithError(statusCode int) error {
	return c.RespondWithErrorMessage(http.StatusText(statusCode), statusCode)
}

// RespondWithErrorMessage responds with a status code and an error message
func (c *Context) RespondWithErrorMessage(message string, statusCode int) error {
	return c.Respond(nil, statusCode, []string{message})
}

// RespondWithErrorDetail responds with the detailed error code and message in
// the "data" object when err carries them
func (c *Context) RespondWithErrorDetail(err error, statusCode int) error {
	var pe *e.PantryError
	if stderrors.As(err, &pe) {
		return c.Respond(pe, statusCode, []string{pe.ErrorMessage})
	}
	return c.Respond(nil, statusCode, []string{err.Error()})
}

// RespondWithData writes data as the JSON body
func (c *Context) RespondWithData(data interface{}) error {
	output, err := json.Marshal(data)
	if err != nil {
		glog.Errorf("json.Marshal(data) %+v", err)
		return c.RespondWithError(http.StatusInternalServerError)
	}

	c.setHeaders(http.StatusOK)
	return c.WriteResponse(output, http.StatusOK)
}

// RespondWithETag writes data as the JSON body with an ETag of the body. A
// request whose If-None-Match already holds that ETag gets 304 and no body.
func (c *Context) RespondWithETag(data interface{}) error {
	output, err := json.Marshal(data)
	if err != nil {
		glog.Errorf("json.Marshal(data) %+v", err)
		return c.RespondWithError(http.StatusInternalServerError)
	}

	sum, err := h.Sha1(output)
	if err != nil {
		glog.Errorf("h.Sha1(output) %+v", err)
		return c.RespondWithError(http.StatusInternalServerError)
	}
	etag := `"` + sum + `"`

	c.setHeaders(http.StatusOK)
	c.ResponseWriter.Header().Set("ETag", etag)

	if matchesETag(c.Request.Header.Get("If-None-Match"), etag) {
		c.ResponseWriter.Header().Del("Content-Type")
		c.ResponseWriter.WriteHeader(http.StatusNotModified)
		return nil
	}

	return c.WriteResponse(output, http.StatusOK)
}

func matchesETag(header string, etag string) bool {
	if header == "" {
		return false
	}

	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}

	return false
}
