package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"essayhub/internal/models"
	"essayhub/internal/pdf"
	"essayhub/internal/repositories"
)

var (
	ErrPhoneRequired  = errors.New("phone is required")
	ErrAmountRequired = errors.New("amount is required")
	ErrGatewayFailure = errors.New("payment gateway failure")
)

// Gateway is the external STK push provider (or the dry-run simulator).
type Gateway interface {
	InitiateSTKPush(phone, amount, accountRef string) (string, error)
}

const simulatedConfirmDelay = 5 * time.Second

type PaymentService struct {
	Orders   repositories.OrderRepository
	Users    repositories.UserRepository
	Gateway  Gateway
	Email    EmailService
	Telegram *TelegramService
	PDFGen   pdf.Generator

	// Simulate auto-confirms pending payments after SimDelay; enabled when
	// the gateway runs dry (no Daraja credentials).
	Simulate bool
	SimDelay time.Duration
}

func NewPaymentService(
	orders repositories.OrderRepository,
	users repositories.UserRepository,
	gateway Gateway,
	email EmailService,
	telegram *TelegramService,
	pdfGen pdf.Generator,
	simulate bool,
) *PaymentService {
	return &PaymentService{
		Orders:   orders,
		Users:    users,
		Gateway:  gateway,
		Email:    email,
		Telegram: telegram,
		PDFGen:   pdfGen,
		Simulate: simulate,
		SimDelay: simulatedConfirmDelay,
	}
}

// Initiate fires the STK push and records the pending payment. The returned
// reference comes back immediately; confirmation arrives via the webhook (or
// the simulated timer).
func (s *PaymentService) Initiate(ctx context.Context, orderID int64, phone string, amount decimal.Decimal) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrPhoneRequired
	}
	order, err := s.Orders.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if amount.IsZero() {
		amount = order.Amount
	}
	if amount.IsZero() {
		return "", ErrAmountRequired
	}

	ref, err := s.Gateway.InitiateSTKPush(phone, amount.String(), fmt.Sprintf("ORDER-%d", orderID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	if err := s.Orders.MarkPaymentPending(ctx, orderID, ref, phone, amount.String()); err != nil {
		return "", err
	}
	log.Printf("[payments][initiate] ok: order=%d phone=%s amount=%s ref=%s", orderID, phone, amount.String(), ref)

	if s.Simulate {
		delay := s.SimDelay
		time.AfterFunc(delay, func() {
			if err := s.Confirm(context.Background(), orderID, ref); err != nil {
				log.Printf("[payments][simulate] confirm failed for order=%d: %v", orderID, err)
			}
		})
	}
	return ref, nil
}

// Confirm is the gateway webhook write. Idempotent: repeated deliveries are
// no-ops, payment_status never regresses from paid.
func (s *PaymentService) Confirm(ctx context.Context, orderID int64, ref string) error {
	if err := s.Orders.ConfirmPayment(ctx, orderID, ref); err != nil {
		return err
	}
	log.Printf("[payments][confirm] ok: order=%d ref=%s", orderID, ref)

	// receipt + notifications are secondary enhancements, never part of the
	// webhook's error path
	go s.afterConfirm(orderID, ref)
	return nil
}

func (s *PaymentService) afterConfirm(orderID int64, ref string) {
	ctx := context.Background()
	order, err := s.Orders.FindByID(ctx, orderID)
	if err != nil {
		log.Printf("[payments][confirm] warning: order %d lookup failed: %v", orderID, err)
		return
	}
	client, err := s.Users.GetByID(order.ClientID)
	if err != nil || client == nil {
		log.Printf("[payments][confirm] warning: client %d lookup failed: %v", order.ClientID, err)
		return
	}

	if s.PDFGen != nil {
		if _, err := s.PDFGen.GenerateReceipt(pdf.ReceiptData{
			OrderID:    order.ID,
			OrderTitle: order.Title,
			ClientName: client.Name,
			Amount:     order.Amount.String(),
			Ref:        ref,
			PaidAt:     time.Now(),
		}); err != nil {
			log.Printf("[payments][confirm] warning: receipt pdf for order=%d failed: %v", order.ID, err)
		}
	}
	if s.Email != nil {
		if err := s.Email.SendPaymentReceipt(client.Email, client.Name, order.Title, ref, order.Amount.String()); err != nil {
			log.Printf("[payments][confirm] warning: receipt email to %s failed: %v", client.Email, err)
		}
	}
	if s.Telegram != nil {
		if err := s.Telegram.NotifyAdmins(fmt.Sprintf("Order #%d paid (ref %s)", order.ID, ref)); err != nil {
			log.Printf("[payments][confirm] warning: telegram notify failed for order=%d: %v", order.ID, err)
		}
	}
}

// Status returns the payment view of an order.
func (s *PaymentService) Status(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.Orders.FindByID(ctx, orderID)
}
