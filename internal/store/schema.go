package store

// Schema is the complete leadscout schema. Nested lead data (contact,
// breakdown, interactions, keyword lists) lives in JSON columns; the
// filterable fields get their own columns and indexes.
const Schema = `
-- Leads discovered by scrape runs
CREATE TABLE IF NOT EXISTS leads (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL DEFAULT '',
    username            TEXT NOT NULL DEFAULT '',
    profile_url         TEXT NOT NULL DEFAULT '',
    location            TEXT NOT NULL DEFAULT '',
    platform            TEXT NOT NULL,
    source_url          TEXT NOT NULL DEFAULT '',
    contact_json        TEXT NOT NULL DEFAULT '{}',
    phase               TEXT NOT NULL DEFAULT 'unknown',
    status              TEXT NOT NULL DEFAULT 'new',
    score               INTEGER NOT NULL DEFAULT 0,
    breakdown_json      TEXT NOT NULL DEFAULT '[]',
    interactions_json   TEXT NOT NULL DEFAULT '[]',
    keywords_json       TEXT NOT NULL DEFAULT '[]',
    interests_json      TEXT NOT NULL DEFAULT '[]',
    destinations_json   TEXT NOT NULL DEFAULT '[]',
    language            TEXT NOT NULL DEFAULT '',
    is_bot              INTEGER NOT NULL DEFAULT 0,
    bot_probability     REAL NOT NULL DEFAULT 0,
    notes_json          TEXT NOT NULL DEFAULT '[]',
    last_interaction_at INTEGER,
    created_at          INTEGER NOT NULL,
    updated_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_phase ON leads(phase);
CREATE INDEX IF NOT EXISTS idx_leads_platform ON leads(platform);

-- Scrape runs
CREATE TABLE IF NOT EXISTS scraping_jobs (
    id           TEXT PRIMARY KEY,
    source_type  TEXT NOT NULL,
    target_url   TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'pending',
    progress     INTEGER NOT NULL DEFAULT 0,
    found        INTEGER NOT NULL DEFAULT 0,
    qualified    INTEGER NOT NULL DEFAULT 0,
    logs_json    TEXT NOT NULL DEFAULT '[]',
    errors_json  TEXT NOT NULL DEFAULT '[]',
    config_json  TEXT NOT NULL DEFAULT '{}',
    created_at   INTEGER NOT NULL,
    started_at   INTEGER,
    completed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON scraping_jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON scraping_jobs(created_at DESC);
`
