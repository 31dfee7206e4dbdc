package database

var schema = []string{
	`CREATE TABLE IF NOT EXISTS dog_profiles (
		id              TEXT PRIMARY KEY,
		owner_id        TEXT NOT NULL,
		name            TEXT NOT NULL,
		breed           TEXT NOT NULL DEFAULT '',
		age_years       DOUBLE PRECISION,
		size            TEXT NOT NULL DEFAULT '',
		energy_level    TEXT NOT NULL DEFAULT '',
		friendliness    INTEGER,
		trainability    INTEGER,
		exercise_needs  TEXT NOT NULL DEFAULT '',
		grooming_needs  TEXT NOT NULL DEFAULT '',
		special_needs   JSONB NOT NULL DEFAULT '[]',
		spayed_neutered BOOLEAN,
		latitude        DOUBLE PRECISION,
		longitude       DOUBLE PRECISION,
		venues          JSONB NOT NULL DEFAULT '[]',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dog_profiles_owner ON dog_profiles (owner_id)`,

	`CREATE TABLE IF NOT EXISTS swipes (
		id              TEXT PRIMARY KEY,
		swiper_owner_id TEXT NOT NULL,
		swiper_dog_id   TEXT NOT NULL,
		swiped_dog_id   TEXT NOT NULL,
		direction       TEXT NOT NULL CHECK (direction IN ('like', 'pass', 'super_like')),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_swipes_pair ON swipes (swiper_dog_id, swiped_dog_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_swipes_created ON swipes (created_at)`,

	`CREATE TABLE IF NOT EXISTS matches (
		id                  TEXT PRIMARY KEY,
		pair_key            TEXT NOT NULL,
		owner1_id           TEXT NOT NULL,
		owner2_id           TEXT NOT NULL,
		dog1_id             TEXT NOT NULL,
		dog2_id             TEXT NOT NULL,
		compatibility_score DOUBLE PRECISION NOT NULL,
		reasons             JSONB NOT NULL DEFAULT '[]',
		match_type          TEXT NOT NULL,
		status              TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL,
		last_interaction_at TIMESTAMPTZ NOT NULL,
		expires_at          TIMESTAMPTZ NOT NULL,
		conversation_id     TEXT
	)`,
	// At most one non-cancelled match per unordered dog pair.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_matches_live_pair ON matches (pair_key) WHERE status <> 'cancelled'`,
	`CREATE INDEX IF NOT EXISTS idx_matches_cancelled_pair ON matches (pair_key, last_interaction_at DESC) WHERE status = 'cancelled'`,
	`CREATE INDEX IF NOT EXISTS idx_matches_expiry ON matches (expires_at) WHERE status IN ('pending', 'active')`,

	`CREATE TABLE IF NOT EXISTS conversations (
		id              TEXT PRIMARY KEY,
		match_id        TEXT NOT NULL UNIQUE,
		owner1_id       TEXT NOT NULL,
		dog1_id         TEXT NOT NULL,
		owner2_id       TEXT NOT NULL,
		dog2_id         TEXT NOT NULL,
		participants    JSONB NOT NULL DEFAULT '[]',
		last_message    TEXT NOT NULL DEFAULT '',
		last_message_at TIMESTAMPTZ,
		has_unread      BOOLEAN NOT NULL DEFAULT false,
		playdate_status TEXT NOT NULL DEFAULT 'none',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
		sender_id       TEXT NOT NULL,
		body            TEXT NOT NULL,
		type            TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		metadata        JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS playdate_requests (
		id           TEXT PRIMARY KEY,
		match_id     TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		receiver_id  TEXT NOT NULL,
		time_slots   JSONB NOT NULL DEFAULT '[]',
		location     JSONB NOT NULL,
		status       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_playdate_requests_match ON playdate_requests (match_id)`,

	`CREATE TABLE IF NOT EXISTS availability_slots (
		id        TEXT PRIMARY KEY,
		user_id   TEXT NOT NULL,
		starts_at TIMESTAMPTZ NOT NULL,
		ends_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_availability_user ON availability_slots (user_id, starts_at)`,

	`CREATE TABLE IF NOT EXISTS owner_contacts (
		user_id          TEXT PRIMARY KEY,
		display_name     TEXT NOT NULL DEFAULT '',
		telegram_chat_id BIGINT,
		email            TEXT NOT NULL DEFAULT '',
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
