package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'boq_item_type') THEN
			CREATE TYPE boq_item_type AS ENUM ('STAGE', 'SUBSTAGE', 'LEVEL', 'SUBLEVEL', 'GROUP', 'SUBGROUP', 'ITEM');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'addendum_status') THEN
			CREATE TYPE addendum_status AS ENUM ('DRAFT', 'APPROVED', 'CANCELLED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'addendum_operation_type') THEN
			CREATE TYPE addendum_operation_type AS ENUM ('SUPPRESS', 'ADD', 'MODIFY_QTY', 'MODIFY_PRICE', 'MODIFY_BOTH');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		code VARCHAR(64) NOT NULL,
		name VARCHAR(256) NOT NULL,
		created_by VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contracts_code ON contracts (code);`,
	`CREATE TABLE IF NOT EXISTS contract_items (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES contracts(id),
		parent_id UUID REFERENCES contract_items(id),
		type boq_item_type NOT NULL,
		code VARCHAR(64) NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		unit VARCHAR(32),
		quantity NUMERIC(20,4),
		unit_price NUMERIC(20,4),
		order_index INTEGER NOT NULL DEFAULT 0,
		measurement_criteria TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ,
		CONSTRAINT chk_contract_items_leaf_fields CHECK (
			type = 'ITEM' OR (unit IS NULL AND quantity IS NULL AND unit_price IS NULL)
		)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_contract_items_contract_id ON contract_items (contract_id) WHERE deleted_at IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_contract_items_parent_id ON contract_items (parent_id) WHERE parent_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_contract_items_deleted_at ON contract_items (deleted_at);`,
	`CREATE TABLE IF NOT EXISTS addendums (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES contracts(id),
		number INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date DATE NOT NULL,
		status addendum_status NOT NULL DEFAULT 'DRAFT',
		total_addition NUMERIC(20,4) NOT NULL DEFAULT 0,
		total_suppression NUMERIC(20,4) NOT NULL DEFAULT 0,
		net_value NUMERIC(20,4) NOT NULL DEFAULT 0,
		totals_version INTEGER NOT NULL DEFAULT 0,
		approved_at TIMESTAMPTZ,
		approved_by VARCHAR(64),
		cancelled_at TIMESTAMPTZ,
		cancelled_by VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_addendum_contract_number ON addendums (contract_id, number);`,
	`CREATE INDEX IF NOT EXISTS idx_addendums_status ON addendums (status);`,
	`CREATE TABLE IF NOT EXISTS addendum_operations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		addendum_id UUID NOT NULL REFERENCES addendums(id) ON DELETE CASCADE,
		sequence INTEGER NOT NULL,
		type addendum_operation_type NOT NULL,
		target_item_id UUID,
		new_item_type boq_item_type,
		new_item_code VARCHAR(64),
		new_item_description TEXT,
		new_item_unit VARCHAR(32),
		new_item_parent_id UUID REFERENCES contract_items(id),
		new_quantity NUMERIC(20,4),
		new_unit_price NUMERIC(20,4),
		value NUMERIC(20,4) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_addendum_operations_addendum_id ON addendum_operations (addendum_id);`,
	`CREATE INDEX IF NOT EXISTS idx_addendum_operations_target_item_id ON addendum_operations (target_item_id) WHERE target_item_id IS NOT NULL;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_addendum_operation_target ON addendum_operations (addendum_id, target_item_id) WHERE target_item_id IS NOT NULL;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_addendum_operation_sequence ON addendum_operations (addendum_id, sequence);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
