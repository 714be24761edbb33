package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables used by the service. The CHECK constraint on
// events keeps 0 <= available_tickets <= total_tickets at the storage
// level.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		name          VARCHAR(255) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		role          ENUM('USER','ADMIN') NOT NULL DEFAULT 'USER',
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS events (
		id                BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title             VARCHAR(255) NOT NULL,
		description       TEXT NULL,
		starts_at         DATETIME NOT NULL,
		total_tickets     INT NOT NULL,
		available_tickets INT NOT NULL,
		normal_price      DECIMAL(10,2) NOT NULL,
		vip_price         DECIMAL(10,2) NOT NULL,
		created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT chk_events_inventory CHECK (available_tickets >= 0 AND available_tickets <= total_tickets)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		unique_ticket_id VARCHAR(64) NOT NULL,
		user_id          BIGINT UNSIGNED NOT NULL,
		event_id         BIGINT UNSIGNED NOT NULL,
		quantity         INT NOT NULL,
		ticket_type      ENUM('NORMAL','VIP') NOT NULL,
		total_amount     DECIMAL(12,2) NOT NULL,
		status           ENUM('PENDING','VALIDATED','CANCELLED') NOT NULL DEFAULT 'PENDING',
		payment_proof    VARCHAR(512) NULL,
		created_at       DATETIME NOT NULL,
		updated_at       DATETIME NOT NULL,
		UNIQUE KEY uq_purchases_ticket (unique_ticket_id),
		KEY idx_purchases_event_status (event_id, status),
		KEY idx_purchases_user (user_id),
		CONSTRAINT fk_purchases_event FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE,
		CONSTRAINT chk_purchases_quantity CHECK (quantity > 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates missing tables. Existing tables are left untouched.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
