package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/types"
	"github.com/post-analyzer/internal/validator"
)

// SignupRequest carries the validation rules for Register
type SignupRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	InviteToken string `json:"inviteToken" validate:"omitempty,max=128"`
}

// SignupService creates accounts and authenticates them
type SignupService struct {
	store       store.Store
	ledger      *InvitationLedger
	validator   *validator.Validator
	hashCost    int
	newID       func() string
	dummyHash   []byte
	defaultPlan string
}

// NewSignupService creates a signup service
func NewSignupService(s store.Store, ledger *InvitationLedger, v *validator.Validator) *SignupService {
	svc := &SignupService{
		store:       s,
		ledger:      ledger,
		validator:   v,
		hashCost:    bcrypt.DefaultCost,
		newID:       func() string { return uuid.Must(uuid.NewV7()).String() },
		defaultPlan: types.DefaultPlanName,
	}
	// compared against on unknown emails so lookups and mismatches cost the same
	svc.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("post-analyzer"), svc.hashCost)
	return svc
}

// Register creates a user on the default plan. When inviteToken is set the
// token is redeemed for the new user and its plan assigned in the same
// transaction, so a rejected token leaves no user behind and a token is never
// USED without its user.
func (s *SignupService) Register(ctx context.Context, email, password, inviteToken string) (*models.User, error) {
	req := SignupRequest{
		Email:       strings.ToLower(strings.TrimSpace(email)),
		Password:    password,
		InviteToken: strings.TrimSpace(inviteToken),
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	user := &models.User{
		ID:           s.newID(),
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		plan, err := s.store.Plans().GetByName(ctx, s.defaultPlan)
		if err != nil {
			return asPersistence("load default plan", mapNotFound(err, "plan", s.defaultPlan))
		}
		user.PlanID = plan.ID

		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperrors.NewConflictError("an account with this email already exists")
			}
			return fmt.Errorf("create user: %w", err)
		}

		if req.InviteToken == "" {
			return nil
		}
		planID, err := s.ledger.ConsumeIn(ctx, tx, req.InviteToken, user.ID)
		if err != nil {
			return err
		}
		if err := tx.Users().UpdatePlan(ctx, user.ID, planID); err != nil {
			return fmt.Errorf("assign invited plan: %w", err)
		}
		user.PlanID = planID
		return nil
	})
	if err != nil {
		return nil, asPersistence("signup", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		logging.FieldUserID: user.ID,
		"planId":            user.PlanID,
		"invited":           req.InviteToken != "",
	}).Info("User registered")
	return user, nil
}

// Authenticate returns the user whose email and password match
func (s *SignupService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewPersistenceError("load user", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logging.FromContext(ctx).WithField(logging.FieldUserID, user.ID).Warn("Failed login attempt")
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}
	return user, nil
}
