package consent

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/arrivohq/arrivo/internal/consent/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ExportCSV streams the tenant's consent trail as CSV, newest first.
// The audit/investigation UI consumes this for compliance reviews.
func ExportCSV(ctx context.Context, db *gorm.DB, repo domain.Repository, tenantID snowflake.ID, w io.Writer) error {
	records, err := repo.ListByTenant(ctx, db, tenantID, 0)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"consent_id", "appointment_id", "status", "expires_at", "created_at", "updated_at",
	}); err != nil {
		return err
	}
	for _, record := range records {
		expires := ""
		if record.ExpiresAt != nil {
			expires = record.ExpiresAt.UTC().Format(time.RFC3339)
		}
		if err := writer.Write([]string{
			strconv.FormatInt(int64(record.ID), 10),
			strconv.FormatInt(int64(record.AppointmentID), 10),
			string(record.Status),
			expires,
			record.CreatedAt.UTC().Format(time.RFC3339),
			record.UpdatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
