package inventory

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/jhoicas/refugio-api/internal/domain"
)

// Rango de stock y cantidades: NUMERIC(10,2).
const (
	QuantityScale     = 2
	QuantityIntDigits = 8
)

// NormalizeText recorta y colapsa los espacios internos ("  Amoxi   cilina " -> "Amoxi cilina").
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NameKey clave de comparación sin distinguir mayúsculas para nombres y unidades.
func NameKey(s string) string {
	// un Caser no se comparte entre goroutines
	return cases.Fold().String(NormalizeText(s))
}

// SameUnit compara dos unidades de medida sin distinguir mayúsculas ni espacios sobrantes.
func SameUnit(a, b string) bool {
	return NameKey(a) == NameKey(b)
}

// ParseQuantity interpreta una cantidad decimal escrita como texto.
// ok es false si el texto está vacío, no es un decimal válido o queda fuera de rango (ver ValidQuantity).
func ParseQuantity(text string) (q decimal.Decimal, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Zero, false
	}
	q, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return canonical(q)
}

// ValidQuantity indica si q cabe en NUMERIC(10,2): a lo sumo dos decimales y |q| < 1e8.
func ValidQuantity(q decimal.Decimal) bool {
	_, ok := canonical(q)
	return ok
}

// CheckQuantity valida q como ValidQuantity y la devuelve normalizada; fuera de rango es ErrValidation.
func CheckQuantity(q decimal.Decimal) (decimal.Decimal, error) {
	c, ok := canonical(q)
	if !ok {
		return decimal.Zero, domain.Validationf("cantidad fuera de rango: hasta %d dígitos enteros y %d decimales", QuantityIntDigits, QuantityScale)
	}
	return c, nil
}

// canonical decide el rango mirando solo los dígitos del coeficiente y el exponente, sin
// operar con 10^exp: un texto corto como "1e900000000" no debe llegar nunca a decimal.Add.
// El resultado lleva el coeficiente sin ceros finales.
func canonical(q decimal.Decimal) (decimal.Decimal, bool) {
	coef := q.Coefficient()
	if coef.Sign() == 0 {
		return decimal.Zero, true
	}
	digits := strings.TrimPrefix(coef.String(), "-")
	trimmed := strings.TrimRight(digits, "0")
	exp := int64(q.Exponent()) + int64(len(digits)-len(trimmed))
	if exp < -QuantityScale || exp+int64(len(trimmed)) > QuantityIntDigits {
		return decimal.Zero, false
	}
	c, _ := new(big.Int).SetString(trimmed, 10)
	if coef.Sign() < 0 {
		c.Neg(c)
	}
	return decimal.NewFromBigInt(c, int32(exp)), true
}
