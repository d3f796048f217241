package localapi

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hichers/hichers/pkg/twincore"
)

// Handler serves the local backend routes.
type Handler struct {
	repo     Repository
	otp      *OTPService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a Handler. A nil logger uses slog.Default.
func NewHandler(repo Repository, otp *OTPService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{repo: repo, otp: otp, validate: v, logger: logger}
}

// Routes registers the local backend routes on r. The server mounts them
// under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/businesses", h.ListBusinesses)
	r.Post("/businesses", h.CreateBusiness)
	r.Get("/businesses/{id}", h.GetBusiness)

	r.Get("/loyalty-programs", h.ListPrograms)
	r.Post("/loyalty-programs", h.CreateProgram)

	r.Get("/customers", h.ListCustomers)
	r.Post("/customers", h.CreateCustomer)

	r.Post("/newsletter", h.Subscribe)
	r.Post("/contact", h.Contact)

	r.Post("/demo/otp/send", h.SendDemoCode)
	r.Post("/demo/otp/verify", h.VerifyDemoCode)
}

// decode reads and validates the body, writing the error response itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := twincore.Decode(r, v); err != nil {
		twincore.Error(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	err := h.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return false
	}
	fe := verrs[0]
	twincore.FieldError(w, http.StatusBadRequest, fe.Field(), fieldMessage(fe))
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "e164":
		return fe.Field() + " must be an international phone number"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}

// fail writes a repository error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, ErrNotFound):
		twincore.Error(w, http.StatusNotFound, notFound)
	case errors.Is(err, ErrConflict):
		twincore.Error(w, http.StatusConflict, "Already exists")
	default:
		h.logger.Error("local backend request failed", "path", r.URL.Path, "err", err)
		twincore.Error(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
	}
}

// businessFilter reads the optional businessId query parameter.
func businessFilter(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("businessId")
	if v == "" {
		return 0, true
	}
	id, err := strconv.Atoi(v)
	return id, err == nil && id > 0
}

// ListBusinesses handles GET /businesses.
func (h *Handler) ListBusinesses(w http.ResponseWriter, r *http.Request) {
	out, err := h.repo.ListBusinesses(r.Context())
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	twincore.JSON(w, http.StatusOK, nonNil(out))
}

// CreateBusiness handles POST /businesses.
func (h *Handler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	var b Business
	if !h.decode(w, r, &b) {
		return
	}
	if err := h.repo.CreateBusiness(r.Context(), &b); err != nil {
		h.fail(w, r, err, "")
		return
	}
	twincore.JSON(w, http.StatusCreated, b)
}

// GetBusiness handles GET /businesses/{id}.
func (h *Handler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		twincore.FieldError(w, http.StatusBadRequest, "id", "id must be a positive number")
		return
	}
	b, err := h.repo.GetBusiness(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Business not found")
		return
	}
	twincore.JSON(w, http.StatusOK, b)
}

// ListPrograms handles GET /loyalty-programs?businessId=.
func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	id, ok := businessFilter(r)
	if !ok {
		twincore.FieldError(w, http.StatusBadRequest, "businessId", "businessId must be a positive number")
		return
	}
	out, err := h.repo.ListPrograms(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	twincore.JSON(w, http.StatusOK, nonNil(out))
}

// CreateProgram handles POST /loyalty-programs.
func (h *Handler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	p := LoyaltyProgram{IsActive: true}
	if !h.decode(w, r, &p) {
		return
	}
	if err := h.repo.CreateProgram(r.Context(), &p); err != nil {
		h.fail(w, r, err, "Business not found")
		return
	}
	twincore.JSON(w, http.StatusCreated, p)
}

// ListCustomers handles GET /customers?businessId=.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	id, ok := businessFilter(r)
	if !ok {
		twincore.FieldError(w, http.StatusBadRequest, "businessId", "businessId must be a positive number")
		return
	}
	out, err := h.repo.ListCustomers(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	twincore.JSON(w, http.StatusOK, nonNil(out))
}

// CreateCustomer handles POST /customers.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var c Customer
	if !h.decode(w, r, &c) {
		return
	}
	if err := h.repo.CreateCustomer(r.Context(), &c); err != nil {
		h.fail(w, r, err, "Business not found")
		return
	}
	twincore.JSON(w, http.StatusCreated, c)
}

// Subscribe handles POST /newsletter. Signing up twice is reported as a
// conflict.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var s Subscription
	if !h.decode(w, r, &s) {
		return
	}
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	if err := h.repo.Subscribe(r.Context(), &s); err != nil {
		if errors.Is(err, ErrConflict) {
			twincore.FieldError(w, http.StatusConflict, "email", "This email is already subscribed")
			return
		}
		h.fail(w, r, err, "")
		return
	}
	twincore.JSON(w, http.StatusCreated, s)
}

// Contact handles POST /contact.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var m ContactMessage
	if !h.decode(w, r, &m) {
		return
	}
	if err := h.repo.SaveContact(r.Context(), &m); err != nil {
		h.fail(w, r, err, "")
		return
	}
	twincore.JSON(w, http.StatusCreated, map[string]any{"id": m.ID, "message": "Thanks, we'll be in touch."})
}

type demoRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code"`
}

// SendDemoCode handles POST /demo/otp/send.
func (h *Handler) SendDemoCode(w http.ResponseWriter, r *http.Request) {
	var req demoRequest
	if !h.decode(w, r, &req) {
		return
	}
	code, err := h.otp.Send(r.Context(), req.Phone)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"message":   "Demo code generated",
		"code":      code,
		"expiresIn": int(demoCodeTTL.Seconds()),
	})
}

// VerifyDemoCode handles POST /demo/otp/verify.
func (h *Handler) VerifyDemoCode(w http.ResponseWriter, r *http.Request) {
	var req demoRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.otp.Verify(r.Context(), req.Phone, strings.TrimSpace(req.Code))
	switch {
	case err == nil:
		twincore.JSON(w, http.StatusOK, map[string]any{"verified": true})
	case errors.Is(err, ErrCodeInvalid):
		twincore.FieldError(w, http.StatusBadRequest, "code", "The code you entered is not valid")
	case errors.Is(err, ErrCodeExpired):
		twincore.FieldError(w, http.StatusGone, "code", "The code has expired, request a new one")
	case errors.Is(err, ErrTooManyAttempts):
		twincore.Error(w, http.StatusTooManyRequests, "Too many attempts, request a new code")
	default:
		h.fail(w, r, err, "")
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
