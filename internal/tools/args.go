package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/michaelbrown/schoolbot/internal/apperr"
	"github.com/michaelbrown/schoolbot/internal/backend"
)

const (
	defaultPage         = 1
	defaultFindLimit    = 10
	defaultHistoryLimit = 20
)

// clockPattern matches a 24-hour HH:MM time.
var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// toolArgs is the typed argument struct owned by each Tool.
type toolArgs interface {
	// prepare applies defaults and forced fields before validation.
	prepare()
	// route returns the backend endpoint for these arguments.
	route() string
}

func (t Tool) newArgs() toolArgs {
	switch t {
	case CreateMessage:
		return &createMessageArgs{}
	case FindMessages:
		return &pagedMessagesArgs{defaultLimit: defaultFindLimit, endpoint: backend.EndpointFindMessages}
	case HistoryMessages:
		return &pagedMessagesArgs{defaultLimit: defaultHistoryLimit, endpoint: backend.EndpointHistoryMessages}
	case FindClasses:
		return &findClassesArgs{}
	case CreateStudent:
		return &createStudentArgs{}
	case CreateClass:
		return &createClassArgs{}
	}
	return nil
}

type createMessageArgs struct {
	Content string `json:"content" validate:"required"`
	Sender  string `json:"sender" validate:"required,oneof=USER BOT"`
	ChatID  int64  `json:"chatId,omitempty" validate:"gte=0"`
}

func (a *createMessageArgs) prepare()      {}
func (a *createMessageArgs) route() string { return backend.EndpointCreateMessage }

type pagedMessagesArgs struct {
	ChatID int64 `json:"chatId" validate:"required,gt=0"`
	Page   int   `json:"page" validate:"min=1"`
	Limit  int   `json:"limit" validate:"min=1"`

	defaultLimit int
	endpoint     string
}

func (a *pagedMessagesArgs) prepare() {
	if a.Page == 0 {
		a.Page = defaultPage
	}
	if a.Limit == 0 {
		a.Limit = a.defaultLimit
	}
}

func (a *pagedMessagesArgs) route() string { return a.endpoint }

type findClassesArgs struct {
	Name         string `json:"name,omitempty"`
	Status       string `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Page         int    `json:"page,omitempty" validate:"gte=0"`
	RowPerPage   int    `json:"rowPerPage,omitempty" validate:"gte=0"`
	LearningDate string `json:"learningDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Month        *int   `json:"month,omitempty" validate:"omitempty,min=1,max=12"`
	Year         *int   `json:"year,omitempty" validate:"omitempty,min=2000,max=2100"`
	FetchAll     bool   `json:"fetchAll"`
}

func (a *findClassesArgs) prepare() { a.FetchAll = true }

// route sends month+year queries to the calendar endpoint.
func (a *findClassesArgs) route() string {
	if a.Month != nil && a.Year != nil {
		return backend.EndpointClassCalendar
	}
	return backend.EndpointFindClasses
}

type createStudentArgs struct {
	Name              string `json:"name" validate:"required"`
	ClassID           int64  `json:"classId" validate:"required,gt=0"`
	Dob               string `json:"dob" validate:"required,datetime=2006-01-02"`
	Parent            string `json:"parent" validate:"required"`
	PhoneNumber       string `json:"phoneNumber" validate:"required"`
	SecondPhoneNumber string `json:"secondPhoneNumber,omitempty"`
}

func (a *createStudentArgs) prepare()      {}
func (a *createStudentArgs) route() string { return backend.EndpointCreateStudent }

type classSession struct {
	SessionKey string  `json:"sessionKey" validate:"required,oneof=SESSION_1 SESSION_2 SESSION_3 SESSION_4 SESSION_5 SESSION_6 SESSION_7"`
	StartTime  string  `json:"startTime" validate:"required,clock24"`
	EndTime    string  `json:"endTime" validate:"required,clock24"`
	Amount     float64 `json:"amount" validate:"gt=0"`
}

type createClassArgs struct {
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status" validate:"required,oneof=ACTIVE INACTIVE"`
	Sessions    []classSession `json:"sessions" validate:"required,min=1,dive"`
}

func (a *createClassArgs) prepare()      {}
func (a *createClassArgs) route() string { return backend.EndpointCreateClass }

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("clock24", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
	return v
}

// decodeArgs fills a tool's typed arguments from the model's plain argument
// map, applies defaults and validates. Every failure is KindValidation.
func decodeArgs(v *validator.Validate, t Tool, raw map[string]any) (toolArgs, error) {
	args := t.newArgs()

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, apperr.Validation(t.String(), "", fmt.Errorf("encoding arguments: %w", err))
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(args); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, apperr.Validation(t.String(), typeErr.Field,
				fmt.Errorf("expected %s, got %s", typeErr.Type, typeErr.Value))
		}
		return nil, apperr.Validation(t.String(), "", err)
	}

	args.prepare()

	if err := v.Struct(args); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, apperr.Validation(t.String(), fieldPath(fe), errors.New(describe(fe)))
		}
		return nil, apperr.Validation(t.String(), "", err)
	}
	return args, nil
}

// fieldPath strips the struct name from the validator namespace, leaving the
// JSON path the model used, e.g. "sessions[0].startTime".
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "clock24":
		return fmt.Sprintf("%q is not a valid HH:mm time (e.g. 08:30)", fe.Value())
	case "datetime":
		return fmt.Sprintf("%v does not match YYYY-MM-DD", fe.Value())
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
