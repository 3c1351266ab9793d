package bds

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// builder fills one record of a known layout. Every setter panics on an
// unknown field or a kind mismatch since both are layout bugs.
type builder struct {
	layout Layout
	data   []byte
}

func newBuilder(tag string) *builder {
	l, ok := Layouts[tag]
	if !ok {
		panic("bds: unknown record tag " + tag)
	}
	d := make([]byte, RecordLength)
	for i := range d {
		d[i] = ' '
	}
	b := &builder{layout: l, data: d}
	b.put(FieldTag, Alpha, tag)
	return b
}

func (b *builder) put(name string, kind Kind, formatted string) {
	f, ok := b.layout.Field(name)
	if !ok {
		panic(fmt.Sprintf("bds: %s has no field %q", b.layout.Tag, name))
	}
	if f.Kind != kind {
		panic(fmt.Sprintf("bds: %s.%s is %s, not %s", b.layout.Tag, name, f.Kind, kind))
	}
	copy(b.data[f.Start-1:f.End()], formatted)
}

func (b *builder) text(name, value string) {
	f, _ := b.layout.Field(name)
	b.put(name, Alpha, alpha(value, f.Width))
}

func (b *builder) number(name string, value int64) {
	f, _ := b.layout.Field(name)
	b.put(name, Numeric, numeric(strconv.FormatInt(value, 10), f.Width))
}

func (b *builder) digits(name, value string) {
	f, _ := b.layout.Field(name)
	b.put(name, Numeric, numeric(value, f.Width))
}

func (b *builder) amount(name string, value decimal.Decimal) {
	f, _ := b.layout.Field(name)
	b.put(name, Amount, amount(value, f.Width))
}

func (b *builder) date(name string, value *time.Time) {
	f, _ := b.layout.Field(name)
	b.put(name, Date, date(value, f.Width))
}

func (b *builder) String() string {
	return string(b.data)
}

// Record is one parsed line of a BDS file.
type Record struct {
	Tag          string
	Sequence     int
	Registration string
	Period       string
	Raw          string
}

// Field returns the raw characters of a field, padding included.
func (r Record) Field(name string) (string, error) {
	l, ok := Layouts[r.Tag]
	if !ok {
		return "", fmt.Errorf("bds: unknown record tag %q", r.Tag)
	}
	f, ok := l.Field(name)
	if !ok {
		return "", fmt.Errorf("bds: %s has no field %q", r.Tag, name)
	}
	if len(r.Raw) < f.End() {
		return "", fmt.Errorf("bds: record too short for %s.%s", r.Tag, name)
	}
	return r.Raw[f.Start-1 : f.End()], nil
}

func (r Record) Text(name string) (string, error) {
	raw, err := r.Field(name)
	return strings.TrimRight(raw, " "), err
}

func (r Record) Int(name string) (int64, error) {
	raw, err := r.Field(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bds: %s.%s %q is not numeric", r.Tag, name, raw)
	}
	return n, nil
}

// Amount decodes a centime field back into a decimal amount.
func (r Record) Amount(name string) (decimal.Decimal, error) {
	c, err := r.Int(name)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(c, -2), nil
}

// Date returns nil for a blank date field.
func (r Record) Date(name string) (*time.Time, error) {
	raw, err := r.Field(name)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("bds: %s.%s %q is not a date", r.Tag, name, raw)
	}
	return &t, nil
}
