package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// PricePlaces is the number of fractional digits a Price carries.
const PricePlaces = 2

// PriceDigits is the total number of digits a Price may carry, as in NUMERIC(10,2).
const PriceDigits = 10

// MaxPrice is the largest price that fits PriceDigits, 99999999.99.
var MaxPrice = MustPrice("99999999.99")

// ZeroPrice is 0.00.
var ZeroPrice = Price{}

// Price is a non-negative monetary value with exactly two fractional digits.
// The zero value is 0.00.
type Price struct {
	d decimal.Decimal
}

// PriceFromDecimal rounds d half-to-even onto two places.
// It does not check the sign; use validate.NormalizePrice for untrusted input.
func PriceFromDecimal(d decimal.Decimal) Price {
	return Price{d: d.RoundBank(PricePlaces)}
}

// MustPrice parses s and panics on failure. Intended for tests and constants.
func MustPrice(s string) Price {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return PriceFromDecimal(d)
}

// Decimal returns the underlying decimal value.
func (p Price) Decimal() decimal.Decimal { return p.d }

// Add returns p + q.
func (p Price) Add(q Price) Price { return PriceFromDecimal(p.d.Add(q.d)) }

// Equal compares by value.
func (p Price) Equal(q Price) bool { return p.d.Equal(q.d) }

// String formats the price with exactly two fractional digits.
func (p Price) String() string { return p.d.StringFixed(PricePlaces) }

// MarshalJSON writes the price as a bare JSON number, e.g. 351.25.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal.
func (p *Price) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = PriceFromDecimal(d)
	return nil
}

// Value implements driver.Valuer. Prices travel as decimal text.
func (p Price) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements sql.Scanner.
func (p *Price) Scan(src any) error {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := src.(type) {
	case string:
		d, err = decimal.NewFromString(v)
	case []byte:
		d, err = decimal.NewFromString(string(v))
	case int64:
		d = decimal.NewFromInt(v)
	case float64:
		d, err = decimal.NewFromString(strconv.FormatFloat(v, 'f', -1, 64))
	case nil:
		return fmt.Errorf("price: NULL")
	default:
		return fmt.Errorf("price: unsupported column type %T", src)
	}
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = PriceFromDecimal(d)
	return nil
}

// MarshalDynamoDBAttributeValue stores the price as a DynamoDB number.
func (p Price) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: p.String()}, nil
}

// UnmarshalDynamoDBAttributeValue reads a DynamoDB number or string.
func (p *Price) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var s string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		s = v.Value
	case *types.AttributeValueMemberS:
		s = v.Value
	default:
		return fmt.Errorf("price: unsupported attribute type %T", av)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = PriceFromDecimal(d)
	return nil
}
