package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"vipra-store/internal/auth"
	"vipra-store/internal/checkout"
	"vipra-store/internal/flash"
	"vipra-store/internal/logger"
	"vipra-store/internal/user"
	"vipra-store/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

const (
	msgRegistered     = "Account created successfully. You are now logged in."
	msgBadCredentials = "Please enter a correct username and password. Note that both fields may be case-sensitive."
)

type Options struct {
	// SecretKey signs the flash cookie.
	SecretKey     string
	SecureCookies bool
	TokenTTL      time.Duration
}

type Handler struct {
	checkout checkout.Service
	users    user.Service
	opts     Options
	views    *renderer
	flash    *flash.Store
}

func NewHandler(checkoutSvc checkout.Service, users user.Service, opts Options) (*Handler, error) {
	views, err := newRenderer()
	if err != nil {
		return nil, err
	}
	if opts.SecretKey == "" {
		return nil, errors.New("web: secret key is required")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = auth.DefaultTokenTTL
	}
	return &Handler{
		checkout: checkoutSvc,
		users:    users,
		opts:     opts,
		views:    views,
		flash:    flash.NewStore(auth.DeriveKey(opts.SecretKey, "flash"), opts.SecureCookies),
	}, nil
}

// Routes mounts the storefront pages on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Home)
	r.HandleFunc("/checkout/", h.Checkout)
	r.Get("/login/", h.LoginForm)
	r.Post("/login/", h.Login)
	r.Post("/logout/", h.Logout)
	r.Get("/register/", h.RegisterForm)
	r.Post("/register/", h.Register)
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reconciled *flash.Message
	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		res, err := h.checkout.Reconcile(ctx, sessionID)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		if res.IsRedirect() {
			h.redirect(w, r, res)
			return
		}
		reconciled = res.Message
	}

	messages := h.flash.Pop(w, r)
	if reconciled != nil {
		messages = append(messages, *reconciled)
	}

	sf, err := h.checkout.Storefront(ctx, utils.UserIDPtrFromContext(ctx))
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "index", pageData{
		Title:      "Store",
		Username:   utils.GetUsernameFromContext(ctx),
		Messages:   messages,
		Products:   sf.Products,
		PaidOrders: sf.PaidOrders,
	})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.checkout.Initiate(ctx, checkout.Request{
		UserID:  utils.UserIDPtrFromContext(ctx),
		Method:  r.Method,
		Form:    r.PostForm,
		BaseURL: requestBaseURL(r),
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.redirect(w, r, res)
}

func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", pageData{
		Title:    "Log in",
		Messages: h.flash.Pop(w, r),
		Next:     r.URL.Query().Get("next"),
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	username := r.PostForm.Get("username")
	next := r.PostForm.Get("next")

	token, _, err := h.users.Login(r.Context(), username, r.PostForm.Get("password"))
	if errors.Is(err, user.ErrInvalidCredentials) {
		h.render(w, r, http.StatusOK, "login", pageData{
			Title:        "Log in",
			Errors:       []string{msgBadCredentials},
			Next:         next,
			FormUsername: username,
		})
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	auth.SetAccessTokenCookie(w, token, h.opts.TokenTTL, h.opts.SecureCookies)
	http.Redirect(w, r, utils.SafeRedirectPath(next, checkout.HomePath), http.StatusFound)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearAccessTokenCookie(w, h.opts.SecureCookies)
	http.Redirect(w, r, checkout.HomePath, http.StatusFound)
}

func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", pageData{
		Title:    "Register",
		Messages: h.flash.Pop(w, r),
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	username := r.PostForm.Get("username")
	token, _, err := h.users.Register(r.Context(),
		username, r.PostForm.Get("password1"), r.PostForm.Get("password2"))

	var problems []string
	var vErr *user.ValidationError
	switch {
	case errors.As(err, &vErr):
		problems = vErr.Problems
	case errors.Is(err, user.ErrUsernameTaken):
		problems = []string{"A user with that username already exists."}
	case err != nil:
		h.serverError(w, r, err)
		return
	}

	if len(problems) > 0 {
		h.render(w, r, http.StatusOK, "register", pageData{
			Title:        "Register",
			Errors:       problems,
			FormUsername: username,
		})
		return
	}

	auth.SetAccessTokenCookie(w, token, h.opts.TokenTTL, h.opts.SecureCookies)
	h.flash.Set(w, flash.Success(msgRegistered))
	http.Redirect(w, r, checkout.HomePath, http.StatusFound)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, res *checkout.Result) {
	if res.Message != nil {
		h.flash.Set(w, res.Message)
	}
	code := res.Code
	if code == 0 {
		code = http.StatusFound
	}
	http.Redirect(w, r, res.Redirect, code)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	data.CSRFField = csrf.TemplateField(r)
	if err := h.views.render(w, status, name, data); err != nil {
		h.serverError(w, r, err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromCtx(r.Context()).Error("request failed",
		zap.String("layer", "handler"),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// requestBaseURL rebuilds scheme://host as the client saw it.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
