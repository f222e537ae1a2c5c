// Package validate normalizes untrusted claim and damage input into canonical domain values.
package validate

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"net/url"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kylejryan/claims-manager/internal/models"

	"github.com/shopspring/decimal"
)

// Column limits shared by every backend.
const (
	MaxTitleLength    = 255
	MaxPartLength     = 255
	MaxImageURLLength = 500
)

var (
	errRequired  = errors.New("value required")
	errBool      = errors.New("booleans are not numbers")
	errType      = errors.New("unsupported value type")
	errNotFinite = errors.New("value must be finite")
)

// DamageInput is the raw, undecoded shape of a damage write.
// Price and Score keep their decoded JSON type; decode request bodies with UseNumber.
type DamageInput struct {
	Part     string `json:"part"`
	Severity string `json:"severity"`
	ImageURL string `json:"image_url"`
	Price    any    `json:"price"`
	Score    any    `json:"score"`
}

// NormalizePrice converts v into a Price rounded half-to-even onto two places.
func NormalizePrice(v any) (models.Price, error) {
	d, err := priceDecimal(v)
	if err != nil {
		return models.Price{}, &models.Error{Kind: models.KindInvalidPrice, Field: "price", Msg: "price must be a valid decimal number", Err: err}
	}
	if d.IsNegative() {
		return models.Price{}, &models.Error{Kind: models.KindInvalidPrice, Field: "price", Msg: "price must be >= 0"}
	}
	if d.IsZero() {
		return models.ZeroPrice, nil
	}

	// d < 10^intDigits; judged before RoundBank so large exponents are never expanded.
	intDigits := int64(d.NumDigits()) + int64(d.Exponent())
	if intDigits > models.PriceDigits-models.PricePlaces {
		return models.Price{}, errPriceTooLarge()
	}
	if intDigits < -models.PricePlaces {
		return models.ZeroPrice, nil
	}
	p := models.PriceFromDecimal(d)
	if p.Decimal().GreaterThan(models.MaxPrice.Decimal()) {
		return models.Price{}, errPriceTooLarge()
	}
	return p, nil
}

func errPriceTooLarge() error {
	return &models.Error{Kind: models.KindInvalidPrice, Field: "price", Msg: "price must be <= " + models.MaxPrice.String()}
}

func priceDecimal(v any) (decimal.Decimal, error) {
	switch p := v.(type) {
	case nil:
		return decimal.Decimal{}, errRequired
	case bool:
		return decimal.Decimal{}, errBool
	case models.Price:
		return p.Decimal(), nil
	case decimal.Decimal:
		return p, nil
	case json.Number:
		return decimal.NewFromString(strings.TrimSpace(p.String()))
	case string:
		return decimal.NewFromString(strings.TrimSpace(p))
	case float32:
		return floatDecimal(float64(p), 32)
	case float64:
		return floatDecimal(p, 64)
	}
	if i, ok := intValue(v); ok {
		return decimal.NewFromInt(i), nil
	}
	if u, ok := uintValue(v); ok {
		return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0), nil
	}
	return decimal.Decimal{}, errType
}

// floatDecimal goes through the shortest decimal text for f, so 99.999 stays 99.999
// instead of its binary neighbour.
func floatDecimal(f float64, bits int) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, errNotFinite
	}
	return decimal.NewFromString(strconv.FormatFloat(f, 'f', -1, bits))
}

// NormalizeScore accepts integers (and integral numbers) between 1 and 10.
// Booleans and strings are rejected.
func NormalizeScore(v any) (models.Score, error) {
	n, ok := scoreValue(v)
	if !ok {
		return 0, &models.Error{Kind: models.KindInvalidScore, Field: "score", Msg: "score must be an integer between 1 and 10"}
	}
	if n < int64(models.MinScore) || n > int64(models.MaxScore) {
		return 0, &models.Error{Kind: models.KindInvalidScore, Field: "score", Msg: "score must be between 1 and 10"}
	}
	return models.Score(n), nil
}

func scoreValue(v any) (int64, bool) {
	switch s := v.(type) {
	case nil, bool, string:
		return 0, false
	case models.Score:
		return int64(s), true
	case json.Number:
		if i, err := s.Int64(); err == nil {
			return i, true
		}
		f, err := s.Float64()
		if err != nil {
			return 0, false
		}
		return integral(f)
	case float32:
		return integral(float64(s))
	case float64:
		return integral(s)
	}
	if i, ok := intValue(v); ok {
		return i, true
	}
	if u, ok := uintValue(v); ok && u <= math.MaxInt64 {
		return int64(u), true
	}
	return 0, false
}

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// intValue and uintValue cover every signed and unsigned integer kind, named types included.
// Bool is its own reflect kind, so it never lands here.
func intValue(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	}
	return 0, false
}

func uintValue(v any) (uint64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	}
	return 0, false
}

// ValidateURL checks that s is a well-formed absolute URL of at most
// MaxImageURLLength characters.
func ValidateURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxImageURLLength {
		return "", &models.Error{Kind: models.KindInvalidURL, Field: "image_url", Msg: "image_url must be at most " + strconv.Itoa(MaxImageURLLength) + " characters"}
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" || strings.ContainsAny(s, " \t\r\n") {
		return "", &models.Error{Kind: models.KindInvalidURL, Field: "image_url", Msg: "image_url must be a valid absolute URL", Err: err}
	}
	return s, nil
}

// NonEmpty returns text trimmed, failing if nothing is left or if more than
// limit characters remain.
func NonEmpty(field, text string, limit int) (string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", &models.Error{Kind: models.KindInvalidField, Field: field, Msg: field + " required"}
	}
	if utf8.RuneCountInString(t) > limit {
		return "", &models.Error{Kind: models.KindInvalidField, Field: field, Msg: field + " must be at most " + strconv.Itoa(limit) + " characters"}
	}
	return t, nil
}

// Severity parses a damage severity.
func Severity(s string) (models.Severity, error) {
	return models.ParseSeverity(s)
}

// Damage normalizes every field of in, returning the first failure.
func Damage(in DamageInput) (models.DamageFields, error) {
	var (
		f   models.DamageFields
		err error
	)
	validators := []func() error{
		func() error { f.Part, err = NonEmpty("part", in.Part, MaxPartLength); return err },
		func() error { f.Severity, err = Severity(in.Severity); return err },
		func() error { f.ImageURL, err = ValidateURL(in.ImageURL); return err },
		func() error { f.Price, err = NormalizePrice(in.Price); return err },
		func() error { f.Score, err = NormalizeScore(in.Score); return err },
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return models.DamageFields{}, err
		}
	}
	return f, nil
}

// Claim validates the fields of a new claim. An all-blank description becomes nil.
func Claim(title string, description *string) (models.NewClaim, error) {
	t, err := NonEmpty("title", title, MaxTitleLength)
	if err != nil {
		return models.NewClaim{}, err
	}
	nc := models.NewClaim{Title: t}
	if description != nil && strings.TrimSpace(*description) != "" {
		d := *description
		nc.Description = &d
	}
	return nc, nil
}

var imageTypes = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/webp": {".webp"},
	"image/gif":  {".gif"},
}

// ImageUpload checks a damage photo upload request and returns the canonical
// content type and extension.
func ImageUpload(filename, contentType string) (ct, ext string, err error) {
	ct = strings.TrimSpace(strings.ToLower(contentType))
	exts, ok := imageTypes[ct]
	if !ok {
		return "", "", &models.Error{Kind: models.KindInvalidField, Field: "content_type", Msg: "content_type must be image/jpeg, image/png, image/webp or image/gif"}
	}
	ext = strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	for _, e := range exts {
		if e == ext {
			return ct, ext, nil
		}
	}
	return "", "", &models.Error{Kind: models.KindInvalidField, Field: "filename", Msg: "filename extension does not match content_type"}
}
