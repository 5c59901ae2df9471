package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Money is an amount in the store currency with two decimal places.
type Money struct {
	amount decimal.Decimal
}

var Zero = Money{amount: decimal.Zero.Round(2)}

func NewMoney(d decimal.Decimal) Money {
	return Money{amount: d.Round(2)}
}

func MoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

// MoneyFromMinor converts an amount in minor units (paise, cents) to Money.
func MoneyFromMinor(units int64) Money {
	return NewMoney(decimal.New(units, -2))
}

func (m Money) Add(o Money) Money {
	return NewMoney(m.amount.Add(o.amount))
}

// Times multiplies by an item quantity.
func (m Money) Times(quantity int) Money {
	return NewMoney(m.amount.Mul(decimal.NewFromInt(int64(quantity))))
}

// MinorUnits is the amount in minor units, as payment gateways expect it.
func (m Money) MinorUnits() int64 {
	return m.amount.Shift(2).Round(0).IntPart()
}

func (m Money) Equal(o Money) bool {
	return m.amount.Equal(o.amount)
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

func (m Money) String() string {
	return m.amount.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = NewMoney(d)
	return nil
}

// MarshalBSONValue stores Money as Decimal128.
func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d, err := primitive.ParseDecimal128(m.String())
	if err != nil {
		return 0, nil, err
	}
	return bson.MarshalValue(d)
}

// UnmarshalBSONValue reads Decimal128 as well as the plain numbers catalog documents use.
func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeDecimal128:
		parsed, err := decimal.NewFromString(rv.Decimal128().String())
		if err != nil {
			return err
		}
		*m = NewMoney(parsed)
	case bson.TypeDouble:
		*m = MoneyFromFloat(rv.Double())
	case bson.TypeInt32:
		*m = NewMoney(decimal.NewFromInt32(rv.Int32()))
	case bson.TypeInt64:
		*m = NewMoney(decimal.NewFromInt(rv.Int64()))
	case bson.TypeNull, bson.TypeUndefined:
		*m = Zero
	default:
		return fmt.Errorf("cannot decode %s into Money", t)
	}
	return nil
}
