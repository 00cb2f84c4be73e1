package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/coreapi/internal/api"
	"github.com/JakeFAU/coreapi/internal/assets"
	"github.com/JakeFAU/coreapi/internal/database"
	"github.com/JakeFAU/coreapi/internal/routing"
	"github.com/JakeFAU/coreapi/internal/users"
)

const (
	faviconName = "favicon.ico"
	indexName   = "index.html"

	defaultAllowHeaders = "Content-Type, Authorization"
	preflightMaxAge     = "600"
	maxCredentialsBody  = 1 << 16
)

// Authenticator checks a username and password.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*users.User, error)
}

// Controller implements the core handler targets.
type Controller struct {
	table  *routing.Table
	auth   Authenticator
	assets assets.Loader
	logger *zap.Logger
}

// NewController builds a Controller. table answers OPTIONS requests.
func NewController(
	table *routing.Table,
	auth Authenticator,
	loader assets.Loader,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		table:  table,
		auth:   auth,
		assets: loader,
		logger: logger,
	}
}

// Handlers maps every core target to its handler.
func (c *Controller) Handlers() map[string]http.Handler {
	return map[string]http.Handler{
		TargetOptions:      http.HandlerFunc(c.options),
		TargetAuthenticate: http.HandlerFunc(c.authenticate),
		TargetFavicon:      http.HandlerFunc(c.favicon),
		TargetAssets:       http.HandlerFunc(c.asset),
		TargetIndex:        http.HandlerFunc(c.index),
	}
}

func (c *Controller) options(w http.ResponseWriter, r *http.Request) {
	methods := c.table.Allowed(r.URL.Path)
	allow := strings.Join(methods, ", ")
	h := w.Header()
	h.Set("Allow", allow)
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	} else {
		h.Add("Vary", "Origin")
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", allow)
	reqHeaders := r.Header.Get("Access-Control-Request-Headers")
	if reqHeaders == "" {
		reqHeaders = defaultAllowHeaders
	}
	h.Set("Access-Control-Allow-Headers", reqHeaders)
	h.Set("Access-Control-Max-Age", preflightMaxAge)
	w.WriteHeader(http.StatusNoContent)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Controller) authenticate(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if creds.Username == "" || creds.Password == "" {
		w.Header().Set("WWW-Authenticate", `Basic realm="coreapi"`)
		api.WriteError(w, http.StatusUnauthorized, "credentials required")
		return
	}

	user, err := c.auth.Authenticate(r.Context(), creds.Username, creds.Password)
	switch {
	case err == nil:
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"username":      user.Username,
		})
	case errors.Is(err, users.ErrInvalidCredentials):
		api.WriteError(w, http.StatusUnauthorized, "invalid credentials")
	case database.IsConnectionError(err):
		c.logger.Warn("database unavailable", zap.Error(err))
		api.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
	case errors.Is(err, database.ErrNotInitialized):
		api.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
	default:
		c.logger.Error("authenticate", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

// readCredentials takes a JSON body on POST requests that send one and falls
// back to HTTP Basic credentials otherwise.
func readCredentials(r *http.Request) (credentials, error) {
	if r.Method == http.MethodPost && isJSON(r.Header.Get("Content-Type")) {
		var creds credentials
		err := json.NewDecoder(io.LimitReader(r.Body, maxCredentialsBody)).Decode(&creds)
		switch {
		case errors.Is(err, io.EOF):
		case err != nil:
			return credentials{}, err
		default:
			return creds, nil
		}
	}
	username, password, _ := r.BasicAuth()
	return credentials{Username: username, Password: password}, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

func (c *Controller) favicon(w http.ResponseWriter, r *http.Request) {
	c.serveAsset(w, r, faviconName)
}

func (c *Controller) asset(w http.ResponseWriter, r *http.Request) {
	c.serveAsset(w, r, routing.Param(r.Context(), AssetParam))
}

func (c *Controller) index(w http.ResponseWriter, r *http.Request) {
	a, err := c.assets.Open(r.Context(), indexName)
	if err != nil {
		if !errors.Is(err, assets.ErrNotFound) {
			c.logger.Warn("open index", zap.Error(err))
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{"service": "coreapi", "status": "ok"})
		return
	}
	c.writeAsset(w, r, a)
}

func (c *Controller) serveAsset(w http.ResponseWriter, r *http.Request, name string) {
	a, err := c.assets.Open(r.Context(), name)
	switch {
	case errors.Is(err, assets.ErrInvalidName):
		api.WriteError(w, http.StatusBadRequest, "invalid asset path")
		return
	case errors.Is(err, assets.ErrNotFound):
		api.WriteError(w, http.StatusNotFound, "asset not found")
		return
	case err != nil:
		c.logger.Error("open asset", zap.String("name", name), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	c.writeAsset(w, r, a)
}

// writeAsset streams a and closes it. Seekable bodies go through
// http.ServeContent for range and conditional request support.
func (c *Controller) writeAsset(w http.ResponseWriter, r *http.Request, a *assets.Asset) {
	defer func() {
		if err := a.Body.Close(); err != nil {
			c.logger.Warn("close asset", zap.String("name", a.Name), zap.Error(err))
		}
	}()
	w.Header().Set("Content-Type", a.ContentType)
	if rs, ok := a.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, a.Name, a.ModTime, rs)
		return
	}
	if a.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	}
	if !a.ModTime.IsZero() {
		w.Header().Set("Last-Modified", a.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, a.Body); err != nil {
		c.logger.Warn("stream asset", zap.String("name", a.Name), zap.Error(err))
	}
}
