package gmail

import (
	"context"
)

// maxPageSize is the Gmail API's limit per list call
const maxPageSize = 500

// Search returns up to limit message ids matching query, newest first.
// Each page requests min(500, remaining) ids.
func Search(ctx context.Context, mb Mailbox, query string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	var ids []string
	pageToken := ""
	for len(ids) < limit {
		remaining := limit - len(ids)
		page, err := mb.List(ctx, query, int64(min(maxPageSize, remaining)), pageToken)
		if err != nil {
			return nil, err
		}
		ids = append(ids, page.IDs...)

		pageToken = page.NextPageToken
		if pageToken == "" || len(page.IDs) == 0 {
			break
		}
	}

	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
