package elastic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"phone-auth-service/internal/client"
	"phone-auth-service/internal/models"
	"phone-auth-service/internal/util"
)

// UserDocument is the searchable projection of a user. Phone data never
// leaves Scylla.
type UserDocument struct {
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	Username        string     `json:"username"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source UserDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

var indexMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"user_id":           map[string]interface{}{"type": "keyword"},
			"username":          map[string]interface{}{"type": "keyword"},
			"name":              map[string]interface{}{"type": "text", "fields": map[string]interface{}{"raw": map[string]interface{}{"type": "keyword", "normalizer": "lowercase"}}},
			"phone_verified_at": map[string]interface{}{"type": "date"},
			"created_at":        map[string]interface{}{"type": "date"},
		},
	},
	"settings": map[string]interface{}{
		"analysis": map[string]interface{}{
			"normalizer": map[string]interface{}{
				"lowercase": map[string]interface{}{"type": "custom", "filter": []string{"lowercase"}},
			},
		},
	},
}

type UserIndex struct {
	es    *client.ESClient
	index string
}

func NewUserIndex(es *client.ESClient, index string) *UserIndex {
	return &UserIndex{es: es, index: index}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (u *UserIndex) EnsureIndex(ctx context.Context) error {
	res, err := u.es.Client.Indices.Exists([]string{u.index}, u.es.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	body, err := encode(indexMapping)
	if err != nil {
		return err
	}
	res, err = u.es.Client.Indices.Create(u.index,
		u.es.Client.Indices.Create.WithContext(ctx),
		u.es.Client.Indices.Create.WithBody(body))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := client.ParseResponse(res, nil); err != nil {
		return err
	}
	util.Info("Elasticsearch user index created", zap.String("index", u.index))
	return nil
}

func (u *UserIndex) IndexUser(ctx context.Context, user *models.User) error {
	doc := UserDocument{
		UserID:          user.UserID,
		Name:            user.Name,
		Username:        user.Username,
		PhoneVerifiedAt: user.PhoneVerifiedAt,
		CreatedAt:       user.CreatedAt,
	}
	if err := u.es.IndexDocument(ctx, u.index, user.UserID, doc); err != nil {
		return fmt.Errorf("failed to index user: %w", err)
	}
	return nil
}

// SearchByUsernameOrName runs a prefix search. Username matches rank first,
// ties break on username.
func (u *UserIndex) SearchByUsernameOrName(ctx context.Context, term string, offset, limit int) ([]models.User, int64, error) {
	var resp searchResponse
	if err := u.es.Search(ctx, u.index, buildSearchQuery(term, offset, limit), &resp); err != nil {
		return nil, 0, err
	}

	users := make([]models.User, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		users = append(users, models.User{
			UserID:          hit.Source.UserID,
			Name:            hit.Source.Name,
			Username:        hit.Source.Username,
			PhoneVerifiedAt: hit.Source.PhoneVerifiedAt,
			CreatedAt:       hit.Source.CreatedAt,
		})
	}
	return users, resp.Hits.Total.Value, nil
}

func buildSearchQuery(term string, offset, limit int) map[string]interface{} {
	lowered := strings.ToLower(term)
	return map[string]interface{}{
		"from": offset,
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{
						"prefix": map[string]interface{}{
							"username": map[string]interface{}{"value": lowered, "boost": 2.0},
						},
					},
					map[string]interface{}{
						"prefix": map[string]interface{}{
							"name.raw": map[string]interface{}{"value": lowered, "boost": 1.0},
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"username": map[string]interface{}{"order": "asc"}},
		},
	}
}
