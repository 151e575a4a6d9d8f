package kurzy

import (
	"io"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bike-order-form/internal/domain/rate"
)

// Decode reads a rate list document:
//
//	{"banka": "...", "kurzy": {"EUR": {"kod": "...", "nazev": "EUR", "jednotka": 1, "dev_stred": 24.5}}}
//
// "kurzy" may also be an array of records. Unknown fields are skipped. A
// record without "kod" or "nazev" falls back to its object key.
func Decode(r io.Reader) (*rate.Table, error) {
	return decode(jx.Decode(r, 4096))
}

// DecodeBytes is like Decode for an in-memory document.
func DecodeBytes(data []byte) (*rate.Table, error) {
	return decode(jx.DecodeBytes(data))
}

func decode(d *jx.Decoder) (*rate.Table, error) {
	if d.Next() != jx.Object {
		return nil, errors.Errorf("rate list: expected object, got %s", d.Next())
	}

	var (
		bank  string
		rates []rate.Rate
		seen  bool
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "banka":
			s, err := readString(d)
			if err != nil {
				return errors.Wrap(err, "banka")
			}
			bank = s
		case "kurzy":
			seen = true
			switch tt := d.Next(); tt {
			case jx.Object:
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					r, err := decodeRate(d, string(key))
					if err != nil {
						return errors.Wrapf(err, "kurzy[%q]", key)
					}
					rates = append(rates, r)
					return nil
				})
			case jx.Array:
				return d.Arr(func(d *jx.Decoder) error {
					r, err := decodeRate(d, "")
					if err != nil {
						return errors.Wrapf(err, "kurzy[%d]", len(rates))
					}
					rates = append(rates, r)
					return nil
				})
			default:
				return errors.Errorf("kurzy: unexpected %s", tt)
			}
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode rate list")
	}
	if !seen {
		return nil, errors.New("decode rate list: missing kurzy")
	}
	return rate.NewTable(bank, rates), nil
}

func decodeRate(d *jx.Decoder, key string) (rate.Rate, error) {
	r := rate.Rate{Unit: 1}
	err := d.ObjBytes(func(d *jx.Decoder, field []byte) error {
		var err error
		switch string(field) {
		case "kod":
			r.Code, err = readString(d)
		case "nazev":
			r.Name, err = readString(d)
		case "jednotka":
			r.Unit, err = readInt(d)
		case "dev_stred":
			r.Mid, err = readDecimal(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(field))
		}
		return nil
	})
	if err != nil {
		return rate.Rate{}, err
	}
	if r.Code == "" {
		r.Code = key
	}
	if r.Name == "" {
		r.Name = key
	}
	return r, nil
}

func readString(d *jx.Decoder) (string, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		return d.Str()
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("expected string, got %s", tt)
	}
}

func readInt(d *jx.Decoder) (int, error) {
	switch tt := d.Next(); tt {
	case jx.Number:
		return d.Int()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.Atoi(strings.TrimSpace(s))
	case jx.Null:
		return 1, d.Null()
	default:
		return 0, errors.Errorf("expected integer, got %s", tt)
	}
}

// readDecimal accepts JSON numbers as well as strings, including the Czech
// decimal comma.
func readDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch tt := d.Next(); tt {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(strings.Replace(strings.TrimSpace(s), ",", ".", 1))
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", tt)
	}
}

// Encode writes tbl in the format Decode reads, keyed by display name.
func Encode(e *jx.Encoder, tbl *rate.Table) {
	e.ObjStart()
	e.FieldStart("banka")
	e.Str(tbl.Bank())
	e.FieldStart("kurzy")
	e.ObjStart()
	for _, r := range tbl.All() {
		e.FieldStart(r.Name)
		e.ObjStart()
		e.FieldStart("kod")
		e.Str(r.Code)
		e.FieldStart("nazev")
		e.Str(r.Name)
		e.FieldStart("jednotka")
		e.Int(r.Unit)
		e.FieldStart("dev_stred")
		e.Num(jx.Num(r.Mid.String()))
		e.ObjEnd()
	}
	e.ObjEnd()
	e.ObjEnd()
}
