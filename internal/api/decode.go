package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/calcapi/internal/calc"
	"github.com/tidwall/gjson"
)

// MaxBodyBytes caps the size of an operation request body.
const MaxBodyBytes = 1 << 20

// Request body field names.
const (
	fieldOperation = "operation"
	fieldOperand1  = "operand1"
	fieldOperand2  = "operand2"
)

// operationRequest is a decoded operation body. Operands that were absent or
// null are reported in fieldErrors and left non-numeric.
type operationRequest struct {
	operation    string
	hasOperation bool
	operand1     calc.Operand
	operand2     calc.Operand
	decoded1     bool
	decoded2     bool
	fieldErrors  []FieldError
}

// values returns the operands that decoded to numbers, for audit records.
func (req *operationRequest) values() (a, b *float64) {
	if req.decoded1 && req.operand1.Numeric {
		v := req.operand1.Value
		a = &v
	}
	if req.decoded2 && req.operand2.Numeric {
		v := req.operand2.Value
		b = &v
	}
	return a, b
}

// readBody reads at most MaxBodyBytes from r.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}

// decodeOperationRequest decodes an operation body. Bodies that are not
// well-formed JSON are rejected, with one exception: the NaN, Infinity and
// -Infinity tokens written by many JSON encoders are accepted so that NaN
// operands reach validation. Values of any other non-numeric JSON type mark
// the operand as non-numeric.
func decodeOperationRequest(body []byte, withOperation bool) *operationRequest {
	req := &operationRequest{}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		req.fieldErrors = append(req.fieldErrors, FieldError{
			Loc:  []string{"body"},
			Msg:  "Field required",
			Type: "missing",
		})
		return req
	}
	if trimmed[0] != '{' || trimmed[len(trimmed)-1] != '}' || !gjson.ParseBytes(trimmed).IsObject() {
		req.fieldErrors = append(req.fieldErrors, FieldError{
			Loc:  []string{"body"},
			Msg:  "Input should be a valid dictionary or object to extract fields from",
			Type: "model_attributes_type",
		})
		return req
	}
	if !gjson.ValidBytes(nonFiniteAsZero(trimmed)) {
		req.fieldErrors = append(req.fieldErrors, FieldError{
			Loc:  []string{"body"},
			Msg:  "JSON decode error",
			Type: "json_invalid",
		})
		return req
	}

	if withOperation {
		res := gjson.GetBytes(trimmed, fieldOperation)
		switch {
		case !res.Exists() || res.Type == gjson.Null:
			req.fieldErrors = append(req.fieldErrors, missingField(fieldOperation))
		case res.Type != gjson.String:
			req.fieldErrors = append(req.fieldErrors, FieldError{
				Loc:  []string{"body", fieldOperation},
				Msg:  "Input should be a valid string",
				Type: "string_type",
			})
		default:
			req.operation = res.Str
			req.hasOperation = true
		}
	}

	req.operand1, req.decoded1 = decodeOperand(trimmed, fieldOperand1, &req.fieldErrors)
	req.operand2, req.decoded2 = decodeOperand(trimmed, fieldOperand2, &req.fieldErrors)
	return req
}

// decodeOperand reads one operand field. decoded is false when the field is
// missing or null, in which case a field error is appended.
func decodeOperand(body []byte, field string, fieldErrors *[]FieldError) (op calc.Operand, decoded bool) {
	res := gjson.GetBytes(body, field)
	if !res.Exists() || res.Type == gjson.Null {
		*fieldErrors = append(*fieldErrors, missingField(field))
		return calc.Operand{}, false
	}
	if res.Type != gjson.Number {
		return calc.Operand{}, true
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(res.Raw), 64)
	if err != nil {
		// Out of range literals round to ±Inf or 0 like any JSON decoder.
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || !errors.Is(numErr.Err, strconv.ErrRange) {
			return calc.Operand{}, true
		}
	}
	return calc.Number(v), true
}

// nonFiniteAsZero returns a copy of body with every bare NaN and Infinity
// value token replaced by 0, leaving string contents untouched.
func nonFiniteAsZero(body []byte) []byte {
	out := make([]byte, 0, len(body))
	inString, escaped := false, false
	for i := 0; i < len(body); i++ {
		c := body[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			out = append(out, c)
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if n := nonFiniteTokenLen(body, i); n > 0 {
			out = append(out, '0')
			i += n - 1
			continue
		}
		out = append(out, c)
	}
	return out
}

// nonFiniteTokenLen reports the length of the NaN or Infinity token starting
// at body[i], or 0 when there is none.
func nonFiniteTokenLen(body []byte, i int) int {
	if i > 0 && !isValueBoundary(body[i-1]) && body[i-1] != '-' {
		return 0
	}
	for _, tok := range []string{"NaN", "Infinity"} {
		end := i + len(tok)
		if end > len(body) || string(body[i:end]) != tok {
			continue
		}
		if end == len(body) || isValueBoundary(body[end]) {
			return len(tok)
		}
	}
	return 0
}

func isValueBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', ',', ':', '[', ']', '{', '}':
		return true
	}
	return false
}

func missingField(field string) FieldError {
	return FieldError{
		Loc:  []string{"body", field},
		Msg:  "Field required",
		Type: "missing",
	}
}

// describeFieldErrors renders field errors for the audit error message.
func describeFieldErrors(fieldErrors []FieldError) string {
	parts := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		parts = append(parts, strings.Join(fe.Loc, ".")+": "+fe.Msg)
	}
	return calc.ErrValidation.Message + ": " + strings.Join(parts, "; ")
}
