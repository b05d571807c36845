package updater

import (
	"database/sql"
	"fmt"

	"github.com/Fantasim/runeidx/internal/runes"
)

// tryMint consults id's entry and, if a mint at the current height is
// within its terms (cap not yet reached, height/offset windows open),
// advances its mint counter and credits unallocated with the minted
// amount. A failed mint (unknown rune, no terms, cap reached, outside the
// window) is a no-op, never an error: "mintable errors map to no mint
// occurred" per the ledger's failure semantics.
func (u *RuneUpdater) tryMint(dbtx *sql.Tx, id runes.RuneId, unallocated map[runes.RuneId]runes.Lot) error {
	entry, err := u.store.GetRuneEntryTx(dbtx, id)
	if err != nil {
		return fmt.Errorf("load rune entry %s for mint: %w", id, err)
	}
	if entry == nil || entry.Terms == nil || entry.Terms.Amount == nil {
		return nil
	}
	if entry.Terms.Cap != nil && entry.Mints >= *entry.Terms.Cap {
		return nil
	}
	if !entry.Terms.Mintable(id.Block, u.height) {
		return nil
	}

	entry.Mints++
	if err := u.store.UpdateRuneEntrySupply(dbtx, id, entry.Mints, entry.Burned); err != nil {
		return fmt.Errorf("persist mint for %s: %w", id, err)
	}
	addLot(unallocated, id, *entry.Terms.Amount)
	return nil
}
