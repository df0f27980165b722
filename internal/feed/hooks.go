package feed

import (
	"log"

	"gorm.io/gorm"

	"github.com/xelth-com/eckdesk/internal/models"
)

// watchedTables are the tables whose writes change a request snapshot
var watchedTables = map[string]bool{
	models.Request{}.TableName():    true,
	models.Attachment{}.TableName(): true,
}

// RegisterHooks registers GORM callbacks that notify the feed after a write to a
// request or attachment row. The callbacks run after the statement's own transaction
// has been committed, so the reloaded snapshot already contains the change.
func RegisterHooks(db *gorm.DB, f *Feed) error {
	notify := func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement.Schema == nil {
			return
		}
		if !watchedTables[tx.Statement.Schema.Table] || tx.RowsAffected == 0 {
			return
		}
		f.Notify()
	}

	const after = "gorm:commit_or_rollback_transaction"
	if err := db.Callback().Create().After(after).Register("feed:after_create", notify); err != nil {
		return err
	}
	if err := db.Callback().Update().After(after).Register("feed:after_update", notify); err != nil {
		return err
	}
	if err := db.Callback().Delete().After(after).Register("feed:after_delete", notify); err != nil {
		return err
	}

	log.Println("✅ Request feed hooks registered")
	return nil
}
