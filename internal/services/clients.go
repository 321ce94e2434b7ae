package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/models"
)

// ClientService is the customer directory.
type ClientService struct {
	DB *gorm.DB
}

func NewClientService(db *gorm.DB) *ClientService {
	return &ClientService{DB: db}
}

// ClientSummary is a directory row.
type ClientSummary struct {
	ID      uint    `json:"id"`
	Name    string  `json:"name"`
	Phone   *string `json:"phone,omitempty"`
	Tickets int     `json:"tickets"`
	Open    int     `json:"open"`
}

// List returns clients with their ticket counts, optionally filtered by name or phone.
func (s *ClientService) List(ctx context.Context, query string) ([]ClientSummary, error) {
	q := s.DB.WithContext(ctx).Table("clients").
		Select(`clients.id, clients.name, clients.phone,
			COUNT(tickets.id) AS tickets,
			COALESCE(SUM(CASE WHEN tickets.status <> ? THEN 1 ELSE 0 END), 0) AS open`, models.StatusDone).
		Joins("LEFT JOIN tickets ON tickets.client_id = clients.id").
		Group("clients.id, clients.name, clients.phone")
	if term := strings.TrimSpace(query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("lower(clients.name) LIKE ? OR clients.phone LIKE ?", like, like)
	}
	var out []ClientSummary
	err := q.Order("clients.name asc").Scan(&out).Error
	return out, err
}

// Get loads a client with its tickets, newest first.
func (s *ClientService) Get(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	err := s.DB.WithContext(ctx).
		Preload("Tickets", func(db *gorm.DB) *gorm.DB { return db.Order("id desc") }).
		Preload("Tickets.Retouches").
		First(&c, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// Update renames a client and changes its phone. An empty phone clears it.
func (s *ClientService) Update(ctx context.Context, id uint, name, phone string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	var p *string
	if phone = strings.TrimSpace(phone); phone != "" {
		p = &phone
	}
	res := s.DB.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).
		Updates(map[string]any{"name": name, "phone": p})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a client with all its tickets and retouches.
func (s *ClientService) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Client{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
