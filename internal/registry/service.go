package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Sentinel errors returned by the registry service.
var (
	ErrProjectExists       = errors.New("project already exists")
	ErrProjectNotFound     = errors.New("project not found")
	ErrInvalidAmount       = errors.New("amount must be greater than 0")
	ErrInsufficientCredits = errors.New("insufficient circulating credits")
)

// Per-round-trip bound on store operations. Expiry is treated as a
// connectivity failure.
const defaultTimeout = 5 * time.Second

// Service implements the credit lifecycle over the registry collections:
// project registration, credit issuance and retirement, and the append-only
// transaction log. The store handle is threaded in explicitly.
type Service struct {
	logger  *slog.Logger
	db      *gorm.DB
	timeout time.Duration
}

// NewService creates a new registry Service.
func NewService(logger *slog.Logger, db *gorm.DB) (*Service, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if db == nil {
		return nil, errors.New("database cannot be nil")
	}

	return &Service{
		logger:  logger,
		db:      db,
		timeout: defaultTimeout,
	}, nil
}

// RegisterProjectInput carries the fields needed to register a project.
type RegisterProjectInput struct {
	ProjectID   string
	Name        string
	Description string
	ProjectType string
	Location    string
	MetadataCID string
	Owner       string
	TxHash      string
}

// RegisterProject registers a new project with zero balances and active
// status, and logs a project_registration transaction.
func (s *Service) RegisterProject(ctx context.Context, input RegisterProjectInput) (*Project, error) {
	if input.ProjectID == "" {
		return nil, errors.New("project_id cannot be empty")
	}
	if input.Name == "" {
		return nil, errors.New("name cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	project := &Project{
		ProjectID:   input.ProjectID,
		Name:        input.Name,
		Description: input.Description,
		ProjectType: input.ProjectType,
		Location:    input.Location,
		MetadataCID: input.MetadataCID,
		Owner:       input.Owner,
		Status:      ProjectStatusActive,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Project{}).Where("project_id = ?", input.ProjectID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check project existence: %w", err)
		}
		if count > 0 {
			return ErrProjectExists
		}

		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		return s.logTransaction(tx, TxTypeProjectRegistration, input.TxHash, TransactionDetails{
			ProjectID: input.ProjectID,
			Metadata:  map[string]string{"name": input.Name, "project_type": input.ProjectType},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project registered",
		"project_id", project.ProjectID,
		"name", project.Name,
	)
	return project, nil
}

// IssueCredits increases a project's issued and circulating balances and logs
// a credit_issuance transaction.
func (s *Service) IssueCredits(ctx context.Context, projectID, to string, amount int64, txHash string) (*Project, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var project Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findProject(tx, projectID, &project); err != nil {
			return err
		}

		project.Balances.TotalIssued += amount
		project.Balances.Circulating = project.Balances.TotalIssued - project.Balances.TotalRetired
		if err := tx.Save(&project).Error; err != nil {
			return fmt.Errorf("failed to update balances: %w", err)
		}

		return s.logTransaction(tx, TxTypeCreditIssuance, txHash, TransactionDetails{
			ProjectID: projectID,
			Amount:    amount,
			To:        to,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("credits issued",
		"project_id", projectID,
		"amount", amount,
		"circulating", project.Balances.Circulating,
	)
	return &project, nil
}

// RetireCredits decreases a project's circulating balance and logs a
// credit_retirement transaction. Retiring more than the circulating balance
// fails with ErrInsufficientCredits.
func (s *Service) RetireCredits(ctx context.Context, projectID string, amount int64, txHash string) (*Project, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var project Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findProject(tx, projectID, &project); err != nil {
			return err
		}

		if project.Balances.Circulating < amount {
			return ErrInsufficientCredits
		}

		project.Balances.TotalRetired += amount
		project.Balances.Circulating = project.Balances.TotalIssued - project.Balances.TotalRetired
		if err := tx.Save(&project).Error; err != nil {
			return fmt.Errorf("failed to update balances: %w", err)
		}

		return s.logTransaction(tx, TxTypeCreditRetirement, txHash, TransactionDetails{
			ProjectID: projectID,
			Amount:    amount,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("credits retired",
		"project_id", projectID,
		"amount", amount,
		"circulating", project.Balances.Circulating,
	)
	return &project, nil
}

// GetProject fetches a project by its natural key.
func (s *Service) GetProject(ctx context.Context, projectID string) (*Project, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var project Project
	if err := findProject(s.db.WithContext(ctx), projectID, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns projects with pagination.
func (s *Service) ListProjects(ctx context.Context, limit, skip int) ([]Project, error) {
	if limit <= 0 {
		limit = 10
	}
	if skip < 0 {
		skip = 0
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var projects []Project
	if err := s.db.WithContext(ctx).
		Order("project_id").
		Limit(limit).
		Offset(skip).
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// History returns the transaction log for a project, most recent first.
func (s *Service) History(ctx context.Context, projectID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var txs []Transaction
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return txs, nil
}

// CreateUser stores a registry account.
func (s *Service) CreateUser(ctx context.Context, user *User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Stats summarizes the registry for the API root endpoint.
type Stats struct {
	Projects           int64 `json:"projects"`
	Plots              int64 `json:"plots"`
	TotalCreditsIssued int64 `json:"total_credits_issued"`
}

// GetStats returns headline counts for the registry.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stats Stats
	if err := s.db.WithContext(ctx).Model(&Project{}).Count(&stats.Projects).Error; err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&Plot{}).Count(&stats.Plots).Error; err != nil {
		return nil, fmt.Errorf("failed to count plots: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&Project{}).
		Select("COALESCE(SUM(balance_total_issued), 0)").
		Scan(&stats.TotalCreditsIssued).Error; err != nil {
		return nil, fmt.Errorf("failed to sum issued credits: %w", err)
	}
	return &stats, nil
}

func findProject(tx *gorm.DB, projectID string, out *Project) error {
	if err := tx.Where("project_id = ?", projectID).First(out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to fetch project: %w", err)
	}
	return nil
}

// logTransaction appends an entry to the transaction log inside the caller's
// store transaction. Entries are never updated afterwards.
func (s *Service) logTransaction(tx *gorm.DB, txType, txHash string, details TransactionDetails) error {
	entry := &Transaction{
		ID:        uuid.NewString(),
		Type:      txType,
		TxHash:    txHash,
		Timestamp: time.Now().UTC(),
		ProjectID: details.ProjectID,
		Details:   datatypes.NewJSONType(details),
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log transaction: %w", err)
	}
	return nil
}
