package mysql

const deleteNodesSQL = `DELETE FROM nodes`

const insertNodesPrefix = "INSERT INTO nodes\n  (position, id, parent, type, content, content_digest, fields)\nVALUES "

// rows per INSERT; stays well under max_allowed_packet for typical payloads
const insertBatch = 200

const insertRunSQL = `INSERT INTO ingest_runs (nodes) VALUES (?)`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const nodeColumns = `id, parent, type, content, content_digest, fields`

const getNodeSQL = `
SELECT ` + nodeColumns + `
FROM nodes
WHERE id = ?
`

// getNodesPrefix is completed with one placeholder per requested id.
const getNodesPrefix = `
SELECT ` + nodeColumns + `
FROM nodes
WHERE id IN `

const listByTypeSQL = `
SELECT ` + nodeColumns + `
FROM nodes
WHERE type = ?
ORDER BY position
LIMIT ?
`
