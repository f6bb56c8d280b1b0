package storage

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS positions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    device_id   INTEGER NOT NULL,
    protocol    TEXT    NOT NULL,
    fix_time    TIMESTAMP NOT NULL,
    valid       BOOLEAN NOT NULL,
    latitude    REAL    NOT NULL,
    longitude   REAL    NOT NULL,
    altitude    REAL    NOT NULL,
    speed       REAL    NOT NULL,
    course      REAL    NOT NULL,
    attributes  TEXT,
    stored_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_positions_device_time
    ON positions(device_id, fix_time);
`

const insertPositionSQL = `
INSERT INTO positions (
    device_id, protocol, fix_time, valid,
    latitude, longitude, altitude, speed, course, attributes
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectLatestSQL = `
SELECT device_id, protocol, fix_time, valid,
       latitude, longitude, altitude, speed, course, attributes
FROM positions
WHERE device_id = ?
ORDER BY fix_time DESC, id DESC
LIMIT 1`

const countPositionsSQL = `SELECT COUNT(*) FROM positions`
