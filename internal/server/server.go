package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"taskline/internal/journal"
	"taskline/internal/logging"
	"taskline/internal/session"
	"taskline/internal/task"
)

// Config for the HTTP API handler.
type Config struct {
	// Session must already be set up and greeted.
	Session  *session.Session
	Journal  *journal.Journal
	BasePath string
	Auth     AuthConfig
	Logger   logging.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"session_inactive"`
	Message string         `json:"message" example:"not accepting commands"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// guarded serializes access to the one session the server drives.
type guarded struct {
	mu sync.Mutex
	s  *session.Session
}

func (g *guarded) do(fn func(s *session.Session)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.s)
}

// New returns an HTTP handler exposing the Taskline API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Session == nil {
		return nil, errors.New("server: session required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNull()
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := cfg.Logger.With("method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), l)))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Taskline API", "0.1.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	sess := &guarded{s: cfg.Session}
	registerHealth(group)
	registerInput(group, sess)
	registerTasks(group, sess)
	registerTask(group, sess)
	registerEvents(group, cfg.Journal)
	registerOpenAPI(router, api, basePath, cfg.Auth.enabled())

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrInactive) {
		return newAPIError(http.StatusConflict, "session_inactive", err.Error(), nil)
	}
	var nt *task.NoCorrespondingTaskError
	if errors.As(err, &nt) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), map[string]any{"id": nt.ID})
	}
	if errors.Is(err, task.ErrIncorrectParameterType) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string, withAuth bool) {
	var (
		once   sync.Once
		doc    []byte
		docErr error
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			if withAuth {
				applyAuthSecurity(oas, basePath)
			}
			doc, docErr = json.Marshal(oas)
		})
		if docErr != nil {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "openapi document unavailable", map[string]any{"error": docErr.Error()}))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, docsHTML(specPath))
	})
}

func operations(item *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{
		item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
	}
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{Description: "Error"}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func docsHTML(specURL string) string {
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <title>Taskline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => { SwaggerUIBundle({ url: '%s', dom_id: '#swagger-ui' }); };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerInput(api huma.API, g *guarded) {
	huma.Register(api, huma.Operation{
		OperationID: "input",
		Method:      http.MethodPost,
		Path:        "/input",
		Summary:     "Handle one line of input",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body InputRequest
	}) (*struct {
		Body ResponseBody `json:"body"`
	}, error) {
		var (
			resp   session.Response
			active bool
		)
		g.do(func(s *session.Session) {
			active = s.Active()
			if active {
				resp = s.Handle(ctx, input.Body.Text)
			}
		})
		if !active {
			return nil, handleError(session.ErrInactive)
		}
		log := logging.Ctx(ctx)
		if p, ok := principalFromContext(ctx); ok {
			log = log.With("subject", p.Subject)
		}
		log.Debug("input handled", "is_error", resp.IsError, "is_active", resp.IsActive)
		return &struct {
			Body ResponseBody `json:"body"`
		}{Body: responseBody(resp)}, nil
	})
}

func registerTasks(api huma.API, g *guarded) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body TaskListResponse `json:"body"`
	}, error) {
		var out TaskListResponse
		g.do(func(s *session.Session) {
			out = taskListResponse(s.Tasks())
		})
		return &struct {
			Body TaskListResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerTask(api huma.API, g *guarded) {
	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get one task by its position",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int `path:"id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		var (
			t   task.Task
			err error
		)
		g.do(func(s *session.Session) {
			t, err = task.NewList(s.Tasks()...).Get(input.ID)
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(input.ID, t)}, nil
	})
}

func registerEvents(api huma.API, j *journal.Journal) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent journal events",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		Kind       string `query:"kind"`
		SessionID  string `query:"session_id"`
		ErrorsOnly bool   `query:"errors_only"`
		Limit      int    `query:"limit" default:"20"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		if j == nil {
			return nil, newAPIError(http.StatusNotFound, "journal_disabled", "journal is disabled", nil)
		}
		if input.Limit < 1 || input.Limit > 500 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "limit must be between 1 and 500", map[string]any{"limit": input.Limit})
		}
		items, err := j.Latest(ctx, input.Limit, journal.Filter{
			SessionID:  input.SessionID,
			Type:       input.Type,
			Kind:       input.Kind,
			ErrorsOnly: input.ErrorsOnly,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventListResponse{Items: []EventResponse{}}
		for _, e := range items {
			resp.Items = append(resp.Items, eventResponse(e))
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: resp}, nil
	})
}
