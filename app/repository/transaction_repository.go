package repository

import (
	"time"

	"github.com/snapboxhq/snapbox/app/models"
	"gorm.io/gorm"
)

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) GetByExternalID(externalID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.Preload("Location").Where("external_id = ?", externalID).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// MarkEmailSent records gallery delivery exactly once; the email_sent_at
// guard keeps a re-run from overwriting the original timestamp.
func (r *transactionRepository) MarkEmailSent(id uint, email string, sentAt time.Time) error {
	return r.db.Model(&models.Transaction{}).
		Where("id = ? AND email_sent_at IS NULL", id).
		Updates(map[string]interface{}{
			"customer_email": email,
			"email_sent_at":  sentAt,
		}).Error
}

func (r *transactionRepository) ListDeliveredBefore(cutoff time.Time) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.Where("email_sent_at IS NOT NULL AND email_sent_at < ?", cutoff).Find(&txns).Error
	return txns, err
}
