package db

// SchemaSQL contains the database schema initialization SQL.
// session is keyed by user ID; turn records reference their session; the
// leaderboard is keyed by user ID as well.
const SchemaSQL = `
    -- ==========================================================================
    -- SESSION TABLE (per-user conversation rollup)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS session SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS last_interaction ON session TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS total_turns ON session TYPE int DEFAULT 0;

    -- ==========================================================================
    -- TURN TABLE (ordered per-session message log)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS turn SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session ON turn TYPE record<session>;
    DEFINE FIELD IF NOT EXISTS content ON turn TYPE string;
    DEFINE FIELD IF NOT EXISTS modality ON turn TYPE string DEFAULT "text"
        ASSERT $value IN ["text", "image"];
    DEFINE FIELD IF NOT EXISTS is_user ON turn TYPE bool;
    DEFINE FIELD IF NOT EXISTS status ON turn TYPE string
        ASSERT $value IN ["delivered", "processing", "completed", "error"];
    DEFINE FIELD IF NOT EXISTS was_image ON turn TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS created ON turn TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS turn_session ON turn FIELDS session;
    DEFINE INDEX IF NOT EXISTS turn_session_created ON turn FIELDS session, created;

    -- ==========================================================================
    -- LEADERBOARD TABLE (per-user quiz score)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS leaderboard SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS points ON leaderboard TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS display_name ON leaderboard TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS last_updated ON leaderboard TYPE datetime DEFAULT time::now();
`
