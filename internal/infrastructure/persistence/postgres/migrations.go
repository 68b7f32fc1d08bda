package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USER STATS AND LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create user_stats and coin_transactions tables
-- Version: 001

-- Per-user aggregate: balances, counters and streaks.
-- Updated with optimistic locking (version column); the ledger below is
-- the audit trail that must always reconcile with ml_coins.
CREATE TABLE IF NOT EXISTS user_stats (
    user_id UUID PRIMARY KEY,
    level INTEGER NOT NULL DEFAULT 1,
    total_xp INTEGER NOT NULL DEFAULT 0,
    current_rank VARCHAR(50) NOT NULL DEFAULT 'ajaw',
    ml_coins INTEGER NOT NULL DEFAULT 0,
    ml_coins_earned_total INTEGER NOT NULL DEFAULT 0,
    ml_coins_spent_total INTEGER NOT NULL DEFAULT 0,
    ml_coins_earned_today INTEGER NOT NULL DEFAULT 0,
    last_coins_reset_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    current_streak INTEGER NOT NULL DEFAULT 0,
    max_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date TIMESTAMP WITH TIME ZONE,
    exercises_completed INTEGER NOT NULL DEFAULT 0,
    modules_completed INTEGER NOT NULL DEFAULT 0,
    perfect_scores INTEGER NOT NULL DEFAULT 0,
    average_score DECIMAL(5,2) NOT NULL DEFAULT 0.00,
    scores_recorded INTEGER NOT NULL DEFAULT 0,
    achievements_earned INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_level CHECK (level >= 1),
    CONSTRAINT valid_total_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_balance CHECK (ml_coins >= 0),
    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND max_streak >= current_streak),
    CONSTRAINT valid_average_score CHECK (average_score >= 0 AND average_score <= 100)
);

CREATE INDEX IF NOT EXISTS idx_user_stats_total_xp ON user_stats(total_xp DESC);
CREATE INDEX IF NOT EXISTS idx_user_stats_current_rank ON user_stats(current_rank);
CREATE INDEX IF NOT EXISTS idx_user_stats_coins_reset ON user_stats(last_coins_reset_at);

-- Append-only coin ledger. No UPDATE or DELETE ever runs against this
-- table; corrections are compensating entries.
CREATE TABLE IF NOT EXISTS coin_transactions (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    amount INTEGER NOT NULL,
    balance_before INTEGER NOT NULL,
    balance_after INTEGER NOT NULL,
    type VARCHAR(20) NOT NULL,
    multiplier_applied DECIMAL(4,2) NOT NULL DEFAULT 1.00,
    reference VARCHAR(200),
    description VARCHAR(500) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_type CHECK (type IN ('earn', 'spend', 'bonus', 'refund', 'admin_adjustment')),
    CONSTRAINT valid_balance_after CHECK (balance_after >= 0),
    CONSTRAINT balance_equation CHECK (balance_after = balance_before + amount)
);

CREATE INDEX IF NOT EXISTS idx_coin_tx_user_created ON coin_transactions(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_coin_tx_user_type ON coin_transactions(user_id, type);
-- Top-earners aggregation scans by window, then groups by user.
CREATE INDEX IF NOT EXISTS idx_coin_tx_created_at ON coin_transactions(created_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS coin_transactions;
DROP TABLE IF EXISTS user_stats;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create achievement definitions and per-user progress
-- Version: 002

-- Admin-managed catalogue. Conditions are stored as a discriminated
-- JSONB payload keyed by condition_kind.
CREATE TABLE IF NOT EXISTS achievement_definitions (
    id VARCHAR(100) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    description VARCHAR(1000) NOT NULL DEFAULT '',
    category VARCHAR(30) NOT NULL,
    condition_kind VARCHAR(30) NOT NULL,
    condition JSONB NOT NULL,
    max_progress INTEGER NOT NULL DEFAULT 1,
    is_repeatable BOOLEAN NOT NULL DEFAULT FALSE,
    is_secret BOOLEAN NOT NULL DEFAULT FALSE,
    reward_xp INTEGER NOT NULL DEFAULT 0,
    reward_coins INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_max_progress CHECK (max_progress >= 1),
    CONSTRAINT valid_rewards CHECK (reward_xp >= 0 AND reward_coins >= 0)
);

CREATE INDEX IF NOT EXISTS idx_achievement_defs_active ON achievement_definitions(is_active) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_achievement_defs_category ON achievement_definitions(category);

CREATE TABLE IF NOT EXISTS user_achievements (
    user_id UUID NOT NULL,
    achievement_id VARCHAR(100) NOT NULL REFERENCES achievement_definitions(id),
    progress INTEGER NOT NULL DEFAULT 0,
    completion_percentage DECIMAL(5,2) NOT NULL DEFAULT 0.00,
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMP WITH TIME ZONE,
    rewards_claimed BOOLEAN NOT NULL DEFAULT FALSE,
    claimed_at TIMESTAMP WITH TIME ZONE,
    times_earned INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, achievement_id),
    CONSTRAINT valid_progress CHECK (progress >= 0),
    CONSTRAINT claimed_implies_completed CHECK (NOT rewards_claimed OR is_completed)
);

CREATE INDEX IF NOT EXISTS idx_user_achievements_user ON user_achievements(user_id);
CREATE INDEX IF NOT EXISTS idx_user_achievements_unclaimed ON user_achievements(user_id) WHERE is_completed AND NOT rewards_claimed;
`

const migration002Down = `
DROP TABLE IF EXISTS user_achievements;
DROP TABLE IF EXISTS achievement_definitions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE MULTIPLIERS AND RANK TABLES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create multiplier sources and rank table storage
-- Version: 003

-- One row per multiplier source. Expired temporary sources are filtered
-- at read time; PurgeExpired removes them eventually.
CREATE TABLE IF NOT EXISTS multiplier_sources (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    kind VARCHAR(20) NOT NULL,
    label VARCHAR(200) NOT NULL,
    value DECIMAL(4,2) NOT NULL,
    permanent BOOLEAN NOT NULL DEFAULT FALSE,
    expires_at TIMESTAMP WITH TIME ZONE,
    granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_kind CHECK (kind IN ('rank', 'streak', 'event', 'purchase')),
    CONSTRAINT valid_value CHECK (value >= 1.0),
    CONSTRAINT permanent_has_no_expiry CHECK (permanent = (expires_at IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_multiplier_sources_user ON multiplier_sources(user_id);
CREATE INDEX IF NOT EXISTS idx_multiplier_sources_expiry ON multiplier_sources(expires_at) WHERE NOT permanent;
-- At most one rank source per user; ReplaceRankSource relies on this.
CREATE UNIQUE INDEX IF NOT EXISTS idx_multiplier_sources_rank ON multiplier_sources(user_id) WHERE kind = 'rank';

-- The active rank table is a single row (id = TRUE); replacements move
-- the previous tiers into rank_table_history.
CREATE TABLE IF NOT EXISTS rank_tables (
    id BOOLEAN PRIMARY KEY DEFAULT TRUE,
    tiers JSONB NOT NULL,
    changed_by VARCHAR(200) NOT NULL DEFAULT '',
    changed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT single_row CHECK (id)
);

CREATE TABLE IF NOT EXISTS rank_table_history (
    id SERIAL PRIMARY KEY,
    tiers JSONB NOT NULL,
    tier_count INTEGER NOT NULL,
    changed_by VARCHAR(200) NOT NULL,
    changed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_rank_history_changed_at ON rank_table_history(changed_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS rank_table_history;
DROP TABLE IF EXISTS rank_tables;
DROP TABLE IF EXISTS multiplier_sources;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE POWERUPS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create power-up inventories
-- Version: 004

-- Charges and lifetime usage are small maps keyed by power-up kind;
-- JSONB keeps the schema stable when kinds are added.
CREATE TABLE IF NOT EXISTS powerup_inventories (
    user_id UUID PRIMARY KEY,
    charges JSONB NOT NULL DEFAULT '{}'::jsonb,
    used_total JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration004Down = `
DROP TABLE IF EXISTS powerup_inventories;
`
