package mysql

const insertPlacesPrefix = "INSERT INTO places\n" +
	"  (run_id, candidate_id, city, name, address, phone, website, rating, review_count, lat, lon, maps_url, socials)\nVALUES "

// Re-flushing a candidate within a run refreshes the row; COALESCE keeps a
// previously found value when the new one is NULL.
const insertPlacesOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  name         = COALESCE(VALUES(name), places.name),\n" +
	"  address      = COALESCE(VALUES(address), places.address),\n" +
	"  phone        = COALESCE(VALUES(phone), places.phone),\n" +
	"  website      = COALESCE(VALUES(website), places.website),\n" +
	"  rating       = COALESCE(VALUES(rating), places.rating),\n" +
	"  review_count = COALESCE(VALUES(review_count), places.review_count),\n" +
	"  lat          = COALESCE(VALUES(lat), places.lat),\n" +
	"  lon          = COALESCE(VALUES(lon), places.lon),\n" +
	"  maps_url     = VALUES(maps_url),\n" +
	"  socials      = COALESCE(VALUES(socials), places.socials)\n"

const insertSkipSQL = `
INSERT INTO harvest_skips (run_id, candidate_id, city, reason)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE reason = VALUES(reason), seen_at = CURRENT_TIMESTAMP(3)
`

const upsertHealthSQL = `
INSERT INTO city_health
  (run_id, city, total, skipped, candidates, present, error, finished_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  total       = VALUES(total),
  skipped     = VALUES(skipped),
  candidates  = VALUES(candidates),
  present     = VALUES(present),
  error       = VALUES(error),
  finished_at = VALUES(finished_at)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const listPlacesSQL = `
SELECT run_id, city, name, address, phone, website, rating, review_count, lat, lon, maps_url, socials
FROM places
WHERE (? = '' OR city = ?)
ORDER BY updated_at DESC, candidate_id
LIMIT ?
`

// Latest finalized report for a city across runs.
const latestHealthSQL = `
SELECT city, total, skipped, candidates, present, error, finished_at
FROM city_health
WHERE city = ?
ORDER BY finished_at DESC
LIMIT 1
`
