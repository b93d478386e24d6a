package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func InitializeDBSchema(db *sqlx.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS schedules (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	class_id UUID NOT NULL,
	instructor_id UUID,
	resource_id UUID,
	location_id UUID,
	start_time TIMESTAMP WITH TIME ZONE NOT NULL,
	end_time TIMESTAMP WITH TIME ZONE NOT NULL,
	capacity INTEGER NOT NULL CHECK (capacity >= 1),
	price_override NUMERIC(10, 2),
	currency CHAR(3) NOT NULL,
	status VARCHAR(16) NOT NULL DEFAULT 'scheduled',
	is_private BOOLEAN NOT NULL DEFAULT FALSE,
	CHECK (start_time < end_time)
);`,
		`
CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	schedule_id UUID NOT NULL REFERENCES schedules (id),
	student_id UUID NOT NULL,
	booking_code VARCHAR(16) NOT NULL UNIQUE,
	amount NUMERIC(10, 2) NOT NULL,
	currency CHAR(3) NOT NULL,
	status VARCHAR(16) NOT NULL DEFAULT 'pending',
	payment_status VARCHAR(16) NOT NULL DEFAULT 'pending',
	notes TEXT NOT NULL DEFAULT '',
	meta JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);`,
		`
CREATE UNIQUE INDEX IF NOT EXISTS bookings_active_student_schedule
	ON bookings (schedule_id, student_id)
	WHERE status != 'cancelled';`,
		`
CREATE TABLE IF NOT EXISTS payments (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	booking_id UUID NOT NULL REFERENCES bookings (id),
	kind VARCHAR(16) NOT NULL,
	amount NUMERIC(10, 2) NOT NULL,
	currency CHAR(3) NOT NULL,
	gateway VARCHAR(32) NOT NULL,
	external_transaction_id VARCHAR(255) NOT NULL DEFAULT '',
	status VARCHAR(16) NOT NULL DEFAULT 'pending',
	meta JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);`,
		`
CREATE INDEX IF NOT EXISTS payments_external_transaction_id
	ON payments (external_transaction_id)
	WHERE external_transaction_id != '';`,
		`
CREATE UNIQUE INDEX IF NOT EXISTS payments_one_open_per_kind
	ON payments (booking_id, kind)
	WHERE status IN ('pending', 'processing');`,
		`
CREATE TABLE IF NOT EXISTS waitlist_entries (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	schedule_id UUID NOT NULL REFERENCES schedules (id),
	student_id UUID NOT NULL,
	enqueued_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	UNIQUE (schedule_id, student_id)
);`,
		`
CREATE TABLE IF NOT EXISTS instructor_availability (
	instructor_id UUID NOT NULL,
	weekday SMALLINT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
	start_minute SMALLINT NOT NULL,
	end_minute SMALLINT NOT NULL,
	PRIMARY KEY (instructor_id, weekday, start_minute)
);`,
		`
CREATE TABLE IF NOT EXISTS instructor_blackouts (
	instructor_id UUID NOT NULL,
	blackout_date DATE NOT NULL,
	PRIMARY KEY (instructor_id, blackout_date)
);`,
		`
CREATE TABLE IF NOT EXISTS events (
	event_id UUID PRIMARY KEY,
	published_at TIMESTAMP WITH TIME ZONE NOT NULL,
	event_name VARCHAR(255) NOT NULL,
	event_payload JSONB NOT NULL
);`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return nil
}
