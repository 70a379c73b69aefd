package archive

import (
	"bytes"
	"fmt"

	"github.com/natefinch/atomic"
)

// ExportSnapshot writes every point of the store's session to path as
// whitespace-separated "x y z intensity" rows, one point per line. The
// file is written atomically so a crashed export never leaves a
// truncated snapshot behind.
func (s *Store) ExportSnapshot(path string) error {
	rows, err := s.db.Query(
		`SELECT x, y, z, intensity FROM world_points WHERE session_id = ? ORDER BY id`,
		s.sessionID,
	)
	if err != nil {
		return fmt.Errorf("snapshot query: %w", err)
	}
	defer rows.Close()

	var buf bytes.Buffer
	for rows.Next() {
		var x, y, z, intensity float64
		if err := rows.Scan(&x, &y, &z, &intensity); err != nil {
			return fmt.Errorf("snapshot scan: %w", err)
		}
		fmt.Fprintf(&buf, "%.6f %.6f %.6f %.6f\n", x, y, z, intensity)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("snapshot iterate: %w", err)
	}

	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}
