package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"essayhub/internal/authz"
	"essayhub/internal/models"
	"essayhub/internal/repositories"
)

var (
	ErrNoSubmission = errors.New("no submission file")
	ErrFileMissing  = errors.New("file not found")
	ErrBadFilepath  = errors.New("bad filepath")
)

// Access is the outcome of the document decision table.
type Access int

const (
	AccessDeny Access = iota
	// AccessPreview — restricted inline rendering, no-store headers, preview
	// artifact preferred over the original bytes.
	AccessPreview
	// AccessFull — unrestricted original file.
	AccessFull
)

// DecideAccess is the authorization decision table for a submitted document.
// Pure function of (requester role, requester id, order ownership, payment
// state, submission presence); evaluated in order, first match wins.
func DecideAccess(userID int64, roleID int, o *models.Order) (Access, error) {
	if o.SubmissionFile == nil || strings.TrimSpace(*o.SubmissionFile) == "" {
		return AccessDeny, ErrNoSubmission
	}
	if roleID == authz.RoleAdmin {
		return AccessFull, nil
	}
	if o.WriterID != nil && *o.WriterID == userID {
		return AccessFull, nil
	}
	if o.ClientID == userID {
		if o.PaymentStatus == models.PaymentPaid {
			return AccessFull, nil
		}
		return AccessPreview, nil
	}
	return AccessDeny, ErrForbidden
}

// ResolvedFile is what a byte-serving handler needs to answer a request.
type ResolvedFile struct {
	Access   Access
	AbsPath  string
	Name     string
	IsPDF    bool
	Original string // original submission name (metadata responses)
}

type DocumentService struct {
	Orders    repositories.OrderRepository
	FilesRoot string
}

func NewDocumentService(orders repositories.OrderRepository, filesRoot string) *DocumentService {
	return &DocumentService{Orders: orders, FilesRoot: filesRoot}
}

// ResolveSubmission applies the decision table to the order and maps the
// outcome to an on-disk file. The order is always fetched fresh — payment and
// status can change between requests.
func (s *DocumentService) ResolveSubmission(ctx context.Context, orderID, userID int64, roleID int) (*ResolvedFile, error) {
	order, err := s.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.resolve(order, userID, roleID)
}

// ResolveByFilename serves the legacy direct-file path: the owning order is
// re-derived from the bare filename, then the same decision table applies.
func (s *DocumentService) ResolveByFilename(ctx context.Context, filename string, userID int64, roleID int) (*ResolvedFile, error) {
	name := sanitizeName(filename)
	if name == "" {
		return nil, ErrBadFilepath
	}
	order, err := s.Orders.FindBySubmissionFile(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.resolve(order, userID, roleID)
}

func (s *DocumentService) resolve(order *models.Order, userID int64, roleID int) (*ResolvedFile, error) {
	access, err := DecideAccess(userID, roleID, order)
	if err != nil {
		return nil, err
	}

	original := sanitizeName(*order.SubmissionFile)
	if original == "" {
		return nil, ErrBadFilepath
	}

	target := original
	if access == AccessPreview && order.PreviewFile != nil {
		// prefer the normalized preview artifact when it actually exists;
		// fall back to the original bytes otherwise
		if p := sanitizeName(*order.PreviewFile); p != "" {
			if _, statErr := os.Stat(filepath.Join(s.FilesRoot, p)); statErr == nil {
				target = p
			}
		}
	}

	abs := filepath.Join(s.FilesRoot, target)
	info, statErr := os.Stat(abs)
	if statErr != nil || info.IsDir() {
		return nil, ErrFileMissing
	}

	return &ResolvedFile{
		Access:   access,
		AbsPath:  abs,
		Name:     target,
		IsPDF:    strings.EqualFold(filepath.Ext(target), ".pdf"),
		Original: original,
	}, nil
}

// sanitizeName strips any nesting: only bare filenames are ever served.
func sanitizeName(name string) string {
	rel := strings.TrimSpace(name)
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = strings.TrimPrefix(rel, "/")
	rel = strings.TrimPrefix(rel, "files/")
	rel = filepath.Base(rel)
	if rel == "" || rel == "." {
		return ""
	}
	return rel
}
