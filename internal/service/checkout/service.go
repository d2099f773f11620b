package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode"

	"storefront/internal/backend"
	"storefront/internal/domain"
)

var (
	// ErrIncompleteShipping is returned before any request is made when a
	// required shipping field is blank.
	ErrIncompleteShipping = fmt.Errorf("%w: please fill in all shipping fields", domain.ErrValidation)
	// ErrInvalidPayment is returned for an unusable payment step.
	ErrInvalidPayment = fmt.Errorf("%w: payment details are incomplete", domain.ErrValidation)
	// ErrEmptyCart is returned when there is nothing to order.
	ErrEmptyCart = errors.New("cart is empty")
)

// DefaultCODFee is the flat fee added when paying on delivery.
const DefaultCODFee domain.Money = 50

// Payment is the payment step. Card fields are only formatted for
// display; nothing is charged here.
type Payment struct {
	Method     domain.PaymentMethod `json:"method"`
	CardNumber string               `json:"cardNumber,omitempty"`
	CardName   string               `json:"cardName,omitempty"`
	Expiry     string               `json:"expiry,omitempty"`
	CVV        string               `json:"cvv,omitempty"`
}

// Form is the full three-step checkout input.
type Form struct {
	Shipping domain.StructuredAddress `json:"shipping"`
	Payment  Payment                  `json:"payment"`
}

// Review is the last step shown before submission.
type Review struct {
	Shipping      domain.StructuredAddress `json:"shipping"`
	PaymentMethod domain.PaymentMethod     `json:"paymentMethod"`
	CardNumber    string                   `json:"cardNumber,omitempty"`
	Expiry        string                   `json:"expiry,omitempty"`
	Lines         []domain.CartLine        `json:"lines"`
	Subtotal      domain.Money             `json:"subtotal"`
	Fee           domain.Money             `json:"fee"`
	Total         domain.Money             `json:"total"`
}

// Cart is what checkout needs from the cart store.
type Cart interface {
	Lines() []domain.CartLine
	Clear(ctx context.Context) error
	Reset()
}

type API interface {
	CreateOrder(ctx context.Context, in backend.OrderRequest) (domain.Order, error)
}

type Service struct {
	api    API
	codFee domain.Money
	logger *log.Logger
}

func New(api API, codFee domain.Money, logger *log.Logger) *Service {
	if codFee < 0 {
		codFee = DefaultCODFee
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{api: api, codFee: codFee, logger: logger}
}

// MissingShipping lists the blank required shipping fields by JSON name.
func MissingShipping(s domain.StructuredAddress) []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"full_name", s.FullName},
		{"phone", s.Phone},
		{"address", s.Address},
		{"city", s.City},
		{"postal_code", s.PostalCode},
		{"country", s.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Fee is the surcharge for method.
func (s *Service) Fee(method domain.PaymentMethod) domain.Money {
	if method == domain.PaymentCOD {
		return s.codFee
	}
	return 0
}

// Review validates the form locally and prices the current cart lines.
func (s *Service) Review(form Form, lines []domain.CartLine) (Review, error) {
	if missing := MissingShipping(form.Shipping); len(missing) > 0 {
		return Review{}, fmt.Errorf("%w (%s)", ErrIncompleteShipping, strings.Join(missing, ", "))
	}
	if err := validatePayment(form.Payment); err != nil {
		return Review{}, err
	}
	if len(lines) == 0 {
		return Review{}, ErrEmptyCart
	}
	subtotal := domain.CartTotal(lines)
	fee := s.Fee(form.Payment.Method)
	r := Review{
		Shipping:      trimAddress(form.Shipping),
		PaymentMethod: form.Payment.Method,
		Lines:         lines,
		Subtotal:      subtotal,
		Fee:           fee,
		Total:         (subtotal + fee).Round2(),
	}
	if form.Payment.Method == domain.PaymentCard {
		r.CardNumber = MaskCardNumber(form.Payment.CardNumber)
		r.Expiry = FormatExpiry(form.Payment.Expiry)
	}
	return r, nil
}

// Submit places one order for the cart. On success the cart is emptied.
func (s *Service) Submit(ctx context.Context, form Form, cart Cart) (domain.Order, error) {
	review, err := s.Review(form, cart.Lines())
	if err != nil {
		return domain.Order{}, err
	}
	req := backend.OrderRequest{
		ShippingAddress: review.Shipping,
		PaymentMethod:   review.PaymentMethod,
		TotalAmount:     review.Total,
	}
	for _, l := range review.Lines {
		req.Items = append(req.Items, backend.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.UnitPrice})
	}
	order, err := s.api.CreateOrder(ctx, req)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	if err := cart.Clear(ctx); err != nil {
		// The order exists; only the cart lines could not be deleted.
		s.logger.Printf("checkout: order %s placed but cart clear failed: %v", order.ID, err)
		cart.Reset()
	}
	return order, nil
}

func validatePayment(p Payment) error {
	switch p.Method {
	case domain.PaymentCOD:
		return nil
	case domain.PaymentCard:
		digits := onlyDigits(p.CardNumber)
		if len(digits) < 13 || len(digits) > 19 {
			return fmt.Errorf("%w: card number", ErrInvalidPayment)
		}
		if strings.TrimSpace(p.CardName) == "" {
			return fmt.Errorf("%w: name on card", ErrInvalidPayment)
		}
		if len(FormatExpiry(p.Expiry)) != 5 || !validMonth(onlyDigits(p.Expiry)) {
			return fmt.Errorf("%w: expiry", ErrInvalidPayment)
		}
		if n := len(onlyDigits(p.CVV)); n < 3 || n > 4 {
			return fmt.Errorf("%w: security code", ErrInvalidPayment)
		}
		return nil
	default:
		return fmt.Errorf("%w: choose a payment method", ErrInvalidPayment)
	}
}

// FormatCardNumber groups up to 16 digits in fours, ignoring other input.
func FormatCardNumber(raw string) string {
	digits := onlyDigits(raw)
	if len(digits) > 16 {
		digits = digits[:16]
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MaskCardNumber keeps the last four digits of the grouped number.
func MaskCardNumber(raw string) string {
	grouped := []rune(FormatCardNumber(raw))
	visible := 0
	for i := len(grouped) - 1; i >= 0; i-- {
		if grouped[i] == ' ' {
			continue
		}
		if visible < 4 {
			visible++
			continue
		}
		grouped[i] = '•'
	}
	return string(grouped)
}

// FormatExpiry applies the MM/YY mask to up to four digits.
func FormatExpiry(raw string) string {
	digits := onlyDigits(raw)
	if len(digits) > 4 {
		digits = digits[:4]
	}
	if len(digits) <= 2 {
		return digits
	}
	return digits[:2] + "/" + digits[2:]
}

func validMonth(digits string) bool {
	if len(digits) < 2 {
		return false
	}
	m := int(digits[0]-'0')*10 + int(digits[1]-'0')
	return m >= 1 && m <= 12
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, s)
}

func trimAddress(a domain.StructuredAddress) domain.StructuredAddress {
	return domain.StructuredAddress{
		FullName:   strings.TrimSpace(a.FullName),
		Phone:      strings.TrimSpace(a.Phone),
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}
