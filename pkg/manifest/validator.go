package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the manifest for missing or out of range fields
func Validate(m *Manifest) error {
	err := validate.Struct(m)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate manifest: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid manifest: %s", strings.Join(msgs, "; "))
}

// tomlKeys maps struct namespaces to the keys users write
var tomlKeys = map[string]string{
	"Manifest.Session.Project":    "session.project",
	"Manifest.Session.Crew":       "session.crew",
	"Manifest.Session.Notes":      "session.notes",
	"Manifest.Upload.Sources":     "upload.sources",
	"Manifest.Upload.Concurrency": "upload.concurrency",
	"Manifest.Upload.ChunkSizeMB": "upload.chunk_size_mb",
}

func describe(fe validator.FieldError) string {
	key, ok := tomlKeys[fe.StructNamespace()]
	if !ok {
		key = fe.Namespace()
		if strings.HasPrefix(fe.StructNamespace(), "Manifest.Upload.Sources[") {
			return "`upload.sources` must not contain empty entries"
		}
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("`%s` is required", key)
	case "required_with":
		return fmt.Sprintf("`%s` is required when a session is named", key)
	case "min":
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("`%s` must list at least %s entry", key, fe.Param())
		}
		return fmt.Sprintf("`%s` must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("`%s` must be at most %s", key, fe.Param())
	default:
		return fmt.Sprintf("`%s` is invalid (%s)", key, fe.Tag())
	}
}
