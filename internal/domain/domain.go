// Package domain holds the persisted models of the content pipeline.
package domain

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Models lists every table owned by this service, in migration order.
func Models() []any {
	return []any{
		&Site{},
		&Keyword{},
		&Article{},
		&ScheduledArticle{},
		&AgentEventRecord{},
		&JobRun{},
	}
}

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
