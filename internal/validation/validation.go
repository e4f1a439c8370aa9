// Package validation gates everything user-submitted before it reaches the
// store: profiles, posts, comments and image uploads. Validators are pure
// and synchronous; each returns every field violation at once, one message
// per field.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("alphanumunderscore", func(fl validator.FieldLevel) bool {
		return usernameRegexp.MatchString(fl.Field().String())
	})
	return v
}

// ValidateStruct runs tag-based validation for request payloads
// (models.SignUpRequest and friends).
func ValidateStruct(s any) error {
	return validate.Struct(s)
}

// Result is the outcome of a structured validator: a map holding at most
// one message per offending field.
type Result struct {
	IsValid bool
	Errors  map[string]string
}

func newResult(errors map[string]string) Result {
	return Result{IsValid: len(errors) == 0, Errors: errors}
}

// Length primitives. Counting is rune-based, matching how users perceive
// characters.

func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}

func tooShort(value string, min int) bool {
	return validate.Var(value, fmt.Sprintf("min=%d", min)) != nil
}

func tooLong(value string, max int) bool {
	return validate.Var(value, fmt.Sprintf("max=%d", max)) != nil
}

// UserInput is a candidate profile. Password is a pointer so edit call
// sites can omit it entirely: the password rules only run when the field
// is present.
type UserInput struct {
	FullName string
	Username string
	Email    string
	Password *string
	Bio      string
}

// ValidateUser checks a profile create or edit payload.
func ValidateUser(input UserInput) Result {
	errors := make(map[string]string)

	switch {
	case isBlank(input.FullName):
		errors["fullName"] = RequiredMessage(fullNameLimits.Label)
	case tooShort(strings.TrimSpace(input.FullName), fullNameLimits.Min):
		errors["fullName"] = MinLengthMessage(fullNameLimits.Label, fullNameLimits.Min)
	case tooLong(input.FullName, fullNameLimits.Max):
		errors["fullName"] = MaxLengthMessage(fullNameLimits.Label, fullNameLimits.Max)
	}

	switch {
	case isBlank(input.Username):
		errors["username"] = RequiredMessage(usernameLimits.Label)
	case tooShort(input.Username, usernameLimits.Min):
		errors["username"] = MinLengthMessage(usernameLimits.Label, usernameLimits.Min)
	case tooLong(input.Username, usernameLimits.Max):
		errors["username"] = MaxLengthMessage(usernameLimits.Label, usernameLimits.Max)
	case !usernameRegexp.MatchString(input.Username):
		errors["username"] = InvalidUsernameMessage
	}

	switch {
	case isBlank(input.Email):
		errors["email"] = RequiredMessage(emailLimits.Label)
	case !emailRegexp.MatchString(input.Email):
		errors["email"] = InvalidEmailMessage
	case tooLong(input.Email, emailLimits.Max):
		errors["email"] = MaxLengthMessage(emailLimits.Label, emailLimits.Max)
	}

	if input.Password != nil {
		switch {
		case *input.Password == "":
			errors["password"] = RequiredMessage(passwordLimits.Label)
		case tooShort(*input.Password, passwordLimits.Min):
			errors["password"] = MinLengthMessage(passwordLimits.Label, passwordLimits.Min)
		case tooLong(*input.Password, passwordLimits.Max):
			errors["password"] = MaxLengthMessage(passwordLimits.Label, passwordLimits.Max)
		}
	}

	if input.Bio != "" && tooLong(input.Bio, bioLimits.Max) {
		errors["bio"] = MaxLengthMessage(bioLimits.Label, bioLimits.Max)
	}

	return newResult(errors)
}

// PostInput is a candidate post. HasPendingImage marks an upload that has
// been selected but not yet stored.
type PostInput struct {
	Content         string
	ImageURL        string
	HasPendingImage bool
}

// ValidatePost checks a post payload. The image requirement is
// unconditional regardless of post type; that is the current product rule.
func ValidatePost(input PostInput) Result {
	errors := make(map[string]string)

	switch {
	case isBlank(input.Content):
		errors["content"] = RequiredMessage(postContentLimits.Label)
	case tooLong(input.Content, postContentLimits.Max):
		errors["content"] = MaxLengthMessage(postContentLimits.Label, postContentLimits.Max)
	}

	if input.ImageURL == "" && !input.HasPendingImage {
		errors["image"] = ImageRequiredMessage
	}

	return newResult(errors)
}

// ValidateComment checks comment text.
func ValidateComment(text string) Result {
	errors := make(map[string]string)

	switch {
	case isBlank(text):
		errors["text"] = RequiredMessage(commentLimits.Label)
	case tooLong(text, commentLimits.Max):
		errors["text"] = MaxLengthMessage(commentLimits.Label, commentLimits.Max)
	}

	return newResult(errors)
}

// ImageFile is the metadata of an upload candidate.
type ImageFile struct {
	Name     string
	MIMEType string
	Size     int64
}

// ImageOptions selects the size budget for an upload.
type ImageOptions struct {
	IsAvatar bool
}

// ValidateImageFile checks an upload's MIME type and size. Both size
// bounds write to the same field slot, so an undersized error overwrites
// an oversized one; kept as-is for parity with the current rules.
func ValidateImageFile(file *ImageFile, opts ImageOptions) Result {
	errors := make(map[string]string)

	if file == nil {
		errors["file"] = RequiredMessage(imageLabel)
		return newResult(errors)
	}

	maxSize := int64(MaxImageSize)
	if opts.IsAvatar {
		maxSize = MaxAvatarSize
	}

	allowed := false
	for _, mimeType := range AllowedImageTypes {
		if file.MIMEType == mimeType {
			allowed = true
			break
		}
	}
	if !allowed {
		extensions := make([]string, len(AllowedImageTypes))
		for i, mimeType := range AllowedImageTypes {
			extensions[i] = strings.ToUpper(strings.TrimPrefix(mimeType, "image/"))
		}
		errors["type"] = InvalidFileTypeMessage(extensions)
	}

	if file.Size > maxSize {
		errors["size"] = FileTooLargeMessage(maxSize)
	}
	if file.Size < MinImageSize {
		errors["size"] = FileTooSmallMessage(MinImageSize)
	}

	return newResult(errors)
}

// FieldRules drives ValidateField for ad hoc single-field checks.
type FieldRules struct {
	Required bool
	Min      int
	Max      int
	Regex    *regexp.Regexp
	Label    string
}

// FieldResult is the outcome of an ad hoc field check.
type FieldResult struct {
	IsValid bool
	Error   string
}

// ValidateField checks one value against ad hoc rules, reporting the first
// violated rule.
func ValidateField(name, value string, rules FieldRules) FieldResult {
	label := rules.Label
	if label == "" {
		label = name
	}

	if rules.Required && isBlank(value) {
		return FieldResult{Error: RequiredMessage(label)}
	}
	if rules.Min > 0 && utf8.RuneCountInString(value) < rules.Min {
		return FieldResult{Error: MinLengthMessage(label, rules.Min)}
	}
	if rules.Max > 0 && utf8.RuneCountInString(value) > rules.Max {
		return FieldResult{Error: MaxLengthMessage(label, rules.Max)}
	}
	if rules.Regex != nil && !rules.Regex.MatchString(value) {
		return FieldResult{Error: InvalidFormatMessage(label)}
	}
	return FieldResult{IsValid: true}
}
