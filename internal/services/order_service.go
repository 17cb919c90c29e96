package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"essayhub/internal/authz"
	"essayhub/internal/convert"
	"essayhub/internal/models"
	"essayhub/internal/repositories"
)

var (
	ErrForbidden        = errors.New("forbidden")
	ErrTitleRequired    = errors.New("title is required")
	ErrClientRequired   = errors.New("client is required")
	ErrBriefRequired    = errors.New("description or client guide is required")
	ErrNotAWriter       = errors.New("target user is not an approved writer")
	ErrNoFileAttached   = errors.New("no file attached")
	ErrUnknownStatus    = errors.New("unknown status")
	ErrNotAssignedToYou = errors.New("order is not assigned to you")
)

type OrderService interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id, userID int64, roleID int) (*models.Order, error)
	List(ctx context.Context, userID int64, roleID int) ([]models.Order, error)
	Delete(ctx context.Context, id int64) error

	// Assign (admin) and Claim (writer, self) apply the same atomic rule.
	Assign(ctx context.Context, orderID, writerID int64) error
	Claim(ctx context.Context, orderID, writerID int64) error

	// UpdateStatus is an unconditional overwrite: only existence of the order
	// and membership of the status enum are checked. Kept permissive on
	// purpose; the transition graph is advisory.
	UpdateStatus(ctx context.Context, orderID int64, to models.OrderStatus, userID int64, roleID int) error

	SubmitWork(ctx context.Context, orderID, writerID int64, roleID int, filename string) error
	Deliver(ctx context.Context, orderID int64) error
}

type orderService struct {
	orders    repositories.OrderRepository
	users     repositories.UserRepository
	converter convert.Converter
	email     EmailService
	telegram  *TelegramService
	filesRoot string
}

func NewOrderService(
	orders repositories.OrderRepository,
	users repositories.UserRepository,
	converter convert.Converter,
	email EmailService,
	telegram *TelegramService,
	filesRoot string,
) OrderService {
	return &orderService{
		orders:    orders,
		users:     users,
		converter: converter,
		email:     email,
		telegram:  telegram,
		filesRoot: filesRoot,
	}
}

func (s *orderService) Create(ctx context.Context, order *models.Order) error {
	if strings.TrimSpace(order.Title) == "" {
		return ErrTitleRequired
	}
	if order.ClientID == 0 {
		return ErrClientRequired
	}
	if strings.TrimSpace(order.Description) == "" && order.ClientGuide == nil {
		return ErrBriefRequired
	}

	order.Status = models.StatusPendingAssignment
	order.WriterID = nil
	order.PaymentStatus = models.PaymentUnpaid

	if err := s.orders.Store(ctx, order); err != nil {
		return err
	}

	if s.telegram != nil {
		go func(id int64, title string) {
			if err := s.telegram.NotifyAdmins(fmt.Sprintf("New order #%d: %s", id, title)); err != nil {
				log.Printf("[orders][create] warning: telegram notify failed for order=%d: %v", id, err)
			}
		}(order.ID, order.Title)
	}
	return nil
}

func (s *orderService) GetByID(ctx context.Context, id, userID int64, roleID int) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canViewOrder(userID, roleID, order) {
		return nil, ErrForbidden
	}
	return order, nil
}

// canViewOrder: admin sees everything; the client sees own orders; a writer
// sees assigned orders plus the unassigned pending pool (claim browsing).
func canViewOrder(userID int64, roleID int, o *models.Order) bool {
	switch roleID {
	case authz.RoleAdmin:
		return true
	case authz.RoleClient:
		return o.ClientID == userID
	case authz.RoleWriter:
		if o.WriterID != nil && *o.WriterID == userID {
			return true
		}
		return o.WriterID == nil && o.Status == models.StatusPendingAssignment
	}
	return false
}

func (s *orderService) List(ctx context.Context, userID int64, roleID int) ([]models.Order, error) {
	filter := models.OrderFilter{}
	switch roleID {
	case authz.RoleAdmin:
		// everything
	case authz.RoleClient:
		filter.ClientID = &userID
	case authz.RoleWriter:
		filter.WriterID = &userID
		filter.IncludeUnassigned = true
	default:
		return nil, ErrForbidden
	}
	return s.orders.FindAll(ctx, filter)
}

func (s *orderService) Delete(ctx context.Context, id int64) error {
	return s.orders.Delete(ctx, id)
}

func (s *orderService) Assign(ctx context.Context, orderID, writerID int64) error {
	writer, err := s.users.GetByID(writerID)
	if err != nil {
		return err
	}
	if writer == nil || writer.RoleID != authz.RoleWriter || !writer.Approved {
		return ErrNotAWriter
	}
	return s.orders.Claim(ctx, orderID, writerID)
}

func (s *orderService) Claim(ctx context.Context, orderID, writerID int64) error {
	return s.orders.Claim(ctx, orderID, writerID)
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, to models.OrderStatus, userID int64, roleID int) error {
	if !models.IsValidOrderStatus(to) {
		return ErrUnknownStatus
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if roleID == authz.RoleWriter && (order.WriterID == nil || *order.WriterID != userID) {
		return ErrNotAssignedToYou
	}
	return s.orders.UpdateStatus(ctx, orderID, to)
}

func (s *orderService) SubmitWork(ctx context.Context, orderID, writerID int64, roleID int, filename string) error {
	if strings.TrimSpace(filename) == "" {
		return ErrNoFileAttached
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if roleID != authz.RoleAdmin && (order.WriterID == nil || *order.WriterID != writerID) {
		return ErrNotAssignedToYou
	}

	if err := s.orders.SetSubmissionFile(ctx, orderID, filename); err != nil {
		return err
	}

	// preview conversion runs off the request path; a failure only costs the
	// client the nicer preview artifact
	go s.generatePreview(orderID, order.Title, filename)

	if s.telegram != nil {
		go func() {
			if err := s.telegram.NotifyAdmins(fmt.Sprintf("Order #%d: work submitted (%s)", orderID, filename)); err != nil {
				log.Printf("[orders][submit] warning: telegram notify failed for order=%d: %v", orderID, err)
			}
		}()
	}
	return nil
}

func (s *orderService) generatePreview(orderID int64, title, filename string) {
	if s.converter == nil {
		return
	}
	src := s.filesRoot + "/" + filename
	preview, err := s.converter.Convert(src, orderID, title)
	if err != nil {
		log.Printf("[orders][preview] conversion failed for order=%d file=%s: %v", orderID, filename, err)
		return
	}
	if err := s.orders.SetPreviewFile(context.Background(), orderID, preview); err != nil {
		log.Printf("[orders][preview] store preview failed for order=%d: %v", orderID, err)
		return
	}
	log.Printf("[orders][preview] ok: order=%d preview=%s", orderID, preview)
}

func (s *orderService) Deliver(ctx context.Context, orderID int64) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.orders.UpdateStatus(ctx, orderID, models.StatusDelivered); err != nil {
		return err
	}

	if s.email != nil {
		go func(clientID int64, title string) {
			client, cerr := s.users.GetByID(clientID)
			if cerr != nil || client == nil {
				log.Printf("[orders][deliver] warning: client %d lookup failed: %v", clientID, cerr)
				return
			}
			if err := s.email.SendOrderDelivered(client.Email, client.Name, title); err != nil {
				log.Printf("[orders][deliver] warning: delivery email to %s failed: %v", client.Email, err)
			}
		}(order.ClientID, order.Title)
	}
	return nil
}
