package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tujenge/kazipro/core/reservation"
)

// loadData imports a reservation dump exported by the previous frontend's
// local store. Legacy field aliases are normalized on the way in; rows that
// collide with an existing active reservation are skipped, not overwritten.
func (cli *commandLine) loadData(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var records []reservation.LegacyRecord
	if err = json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	ctx := context.Background()
	var imported, skipped, failed int
	for i, lr := range records {
		res, err := lr.Normalize()
		if err != nil {
			failed++
			fmt.Printf("record %d: %v\n", i, err)
			continue
		}
		if _, err = cli.resRepo.CreateReservation(ctx, res); err != nil {
			if err == reservation.ErrAlreadyReserved {
				skipped++
				continue
			}
			failed++
			fmt.Printf("record %d: %v\n", i, err)
		} else {
			imported++
		}
	}

	fmt.Printf("imported %d, skipped %d, failed %d of %d records\n", imported, skipped, failed, len(records))
	if failed > 0 {
		return fmt.Errorf("%d records failed to import", failed)
	}
	return nil
}
