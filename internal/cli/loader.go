package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/crawlplan/internal/catalog"
	"github.com/roach88/crawlplan/internal/ir"
	"github.com/roach88/crawlplan/internal/planner"
	"github.com/roach88/crawlplan/internal/schema"
	"github.com/roach88/crawlplan/internal/store"
	"github.com/roach88/crawlplan/internal/storeop"
)

// LoadError represents an error that occurred while loading a CLI input
// file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeReadFailed   = "E002" // Input file could not be read
	ErrCodeDecodeFailed = "E003" // Request or records file does not decode
	ErrCodeCatalog      = "E004" // Catalog does not compile
	ErrCodeNotFound     = "E005" // Path or record not found
	ErrCodeUnknownType  = "E006" // Unknown record type
	ErrCodeStore        = "E007" // Store open, read or write error

	// Planning errors
	ErrCodeInvalidPath    = "E101" // Path not part of the record type
	ErrCodeInvalidValue   = "E102" // Value does not match the field kind
	ErrCodeInvalidRequest = "E103" // Malformed request or label selector
	ErrCodeInvariant      = "E110" // Planner invariant violated
	ErrCodeInvalidPlan    = "E111" // Plan failed structural validation
)

// LoadCatalog compiles the catalog at path, or the built-in crawler
// catalog when path is empty.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	var (
		cat *catalog.Catalog
		err error
	)
	if path == "" {
		cat, err = catalog.Crawler()
	} else {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog file not found: %s", path)}
		}
		cat, err = catalog.LoadFile(path)
	}
	if err != nil {
		return nil, convertCompileError(err)
	}
	return cat, nil
}

// convertCompileError converts a catalog error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *catalog.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCatalog,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeCatalog, Message: err.Error()}
}

// RequestFile is the YAML form of a list request.
type RequestFile struct {
	IDs        []string       `yaml:"ids"`
	Template   map[string]any `yaml:"template"`
	Mask       []string       `yaml:"mask"`
	Ranges     []RangeFile    `yaml:"ranges"`
	OrderBy    string         `yaml:"order_by"`
	Descending bool           `yaml:"descending"`
	Labels     []string       `yaml:"labels"`
	Offset     int            `yaml:"offset"`
	PageSize   int            `yaml:"page_size"`
	Fields     []string       `yaml:"fields"`
}

// RangeFile is one range constraint. An omitted end is unbounded.
type RangeFile struct {
	Path string `yaml:"path"`
	From any    `yaml:"from"`
	To   any    `yaml:"to"`
}

// LoadRequest reads a YAML request file.
func LoadRequest(path string) (planner.ListRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return planner.ListRequest{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("request file not found: %s", path)}
		}
		return planner.ListRequest{}, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	return ParseRequest(data)
}

// ParseRequest decodes a YAML request. Unknown keys are rejected.
func ParseRequest(data []byte) (planner.ListRequest, error) {
	var file RequestFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return planner.ListRequest{}, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("decoding request: %v", err)}
	}

	req := planner.ListRequest{
		IDs:                file.IDs,
		QueryMask:          file.Mask,
		OrderByPath:        file.OrderBy,
		OrderDescending:    file.Descending,
		LabelSelectors:     file.Labels,
		Offset:             file.Offset,
		PageSize:           file.PageSize,
		ReturnedFieldsMask: file.Fields,
	}
	if file.Template != nil {
		v, err := fromYAML(file.Template)
		if err != nil {
			return planner.ListRequest{}, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("template: %v", err)}
		}
		req.QueryTemplate = v.(ir.IRObject)
	}
	for i, r := range file.Ranges {
		rc := planner.RangeConstraint{Path: r.Path}
		var err error
		if r.From != nil {
			if rc.From, err = fromYAML(r.From); err != nil {
				return planner.ListRequest{}, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("ranges[%d].from: %v", i, err)}
			}
		}
		if r.To != nil {
			if rc.To, err = fromYAML(r.To); err != nil {
				return planner.ListRequest{}, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("ranges[%d].to: %v", i, err)}
			}
		}
		req.Ranges = append(req.Ranges, rc)
	}
	return req, nil
}

// fromYAML converts decoded YAML into an IRValue. YAML timestamps become
// timestamp strings.
func fromYAML(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case time.Time:
		return ir.Timestamp(val), nil
	case []any:
		arr := make(ir.IRArray, len(val))
		for i, elem := range val {
			e, err := fromYAML(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(ir.IRObject, len(val))
		for k, elem := range val {
			e, err := fromYAML(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	default:
		return ir.FromGo(v)
	}
}

// LoadRecords reads a JSON array of records.
func LoadRecords(path string) ([]ir.IRObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("records file not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("decoding records: %v", err)}
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: "records file must hold a JSON array"}
	}
	records := make([]ir.IRObject, len(arr))
	for i, elem := range arr {
		obj, ok := elem.(ir.IRObject)
		if !ok {
			return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("records[%d] is not an object", i)}
		}
		records[i] = obj
	}
	return records, nil
}

// LoadPatch reads a JSON object holding the fields of an update.
func LoadPatch(path string) (ir.IRObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("patch file not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("decoding patch: %v", err)}
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: "patch file must hold a JSON object"}
	}
	return obj, nil
}

// classify maps an error to its CLI error code and exit code.
func classify(err error) (code string, exit int) {
	var (
		loadErr     *LoadError
		unknownErr  *catalog.UnknownTypeError
		valueErr    *schema.ValueError
		validateErr *storeop.ValidationError
	)
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Code, ExitCommandError
	case errors.As(err, &unknownErr):
		return ErrCodeUnknownType, ExitCommandError
	case schema.IsInvalidPath(err):
		return ErrCodeInvalidPath, ExitCommandError
	case errors.As(err, &valueErr), errors.Is(err, store.ErrPrimaryKeyChanged):
		return ErrCodeInvalidValue, ExitCommandError
	case planner.IsInputError(err):
		return ErrCodeInvalidRequest, ExitCommandError
	case planner.IsInvariantError(err):
		return ErrCodeInvariant, ExitFailure
	case errors.As(err, &validateErr):
		return ErrCodeInvalidPlan, ExitFailure
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// outputError reports err through the formatter and returns the matching
// ExitError.
func outputError(formatter *OutputFormatter, err error) error {
	code, exit := classify(err)
	message := err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		message = loadErr.Message
		if loadErr.Pos.IsValid() {
			message = loadErr.Error()
		}
	}
	_ = formatter.Error(code, message, nil)
	return WrapExitError(exit, code, err)
}
