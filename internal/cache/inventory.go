package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ClassificationKeyPrefix   = "classification:%d"
	ProfilePostsKeyPrefix     = "worklist:profile:%d"
	CategoryProfilesKeyPrefix = "worklist:category:%s"
	ScrapeQueueKey            = "scrape:queue"
	CategoriesKey             = "categories"
)

// Work-list snapshots go stale as soon as any classification is saved, so
// they get short TTLs and explicit invalidation on save.
const (
	ClassificationTTL   = 5 * time.Minute
	ProfilePostsTTL     = 1 * time.Minute
	CategoryProfilesTTL = 30 * time.Second
	ScrapeQueueTTL      = 10 * time.Second
	CategoriesTTL       = 10 * time.Minute
)

func ClassificationKey(postID uint) string {
	return fmt.Sprintf(ClassificationKeyPrefix, postID)
}

func ProfilePostsKey(profileID uint) string {
	return fmt.Sprintf(ProfilePostsKeyPrefix, profileID)
}

func CategoryProfilesKey(category string) string {
	return fmt.Sprintf(CategoryProfilesKeyPrefix, category)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateClassification drops the cached classification for a post along
// with the work-list snapshots derived from classification existence.
func InvalidateClassification(ctx context.Context, postID, profileID uint, category string) {
	Invalidate(ctx, ClassificationKey(postID))
	Invalidate(ctx, ProfilePostsKey(profileID))
	if category != "" {
		Invalidate(ctx, CategoryProfilesKey(category))
	}
}

func InvalidateScrapeQueue(ctx context.Context) {
	Invalidate(ctx, ScrapeQueueKey)
}
