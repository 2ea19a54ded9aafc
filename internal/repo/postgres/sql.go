package postgres

const incidentSelectByIDSQL = `
SELECT id, patient_id, patient_lat, patient_lng, status,
       responder_id, responder_lat, responder_lng, responder_updated_at,
       created_at, updated_at, responded_at, resolved_at
FROM incidents
WHERE id = $1
`

const incidentSelectByIDForUpdateSQL = incidentSelectByIDSQL + " FOR UPDATE"

const incidentListSQL = `
SELECT id, patient_id, patient_lat, patient_lng, status,
       responder_id, responder_lat, responder_lng, responder_updated_at,
       created_at, updated_at, responded_at, resolved_at
FROM incidents
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at
LIMIT $2 OFFSET $3
`

const incidentInsertSQL = `
INSERT INTO incidents (
  id, patient_id, patient_lat, patient_lng, status,
  responder_id, responder_lat, responder_lng, responder_updated_at,
  created_at, updated_at, responded_at, resolved_at
) VALUES (
  $1,$2,$3,$4,$5,
  $6,$7,$8,$9,
  $10,$11,$12,$13
)
`

const incidentUpdateSQL = `
UPDATE incidents SET
  patient_id = $1,
  patient_lat = $2,
  patient_lng = $3,
  status = $4,
  responder_id = $5,
  responder_lat = $6,
  responder_lng = $7,
  responder_updated_at = $8,
  updated_at = $9,
  responded_at = $10,
  resolved_at = $11
WHERE id = $12
`

const outboxInsertSQL = `
INSERT INTO outbox_events (
  id, event_type, aggregate_type, aggregate_id, payload, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6)
`

const outboxFetchPendingSQL = `
SELECT id, event_type, aggregate_type, aggregate_id, payload, occurred_at
FROM outbox_events
WHERE published_at IS NULL
ORDER BY occurred_at
LIMIT $1
`

const outboxMarkPublishedSQL = `
UPDATE outbox_events
SET published_at = now()
WHERE id = ANY($1::uuid[])
`
