package id

import (
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

var (
	node *snowflake.Node
	once sync.Once
)

// documentNamespace scopes name-based document ids so they never collide with
// ids minted elsewhere from the same strings.
var documentNamespace = uuid.MustParse("6f1c9f3e-8d2a-4b5e-9a47-3c2d1e0f5b6a")

// Init initializes the Snowflake node with the given node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new time-ordered int64 ID using the Snowflake algorithm.
// Story ids come from here.
func New() int64 {
	return node.Generate().Int64()
}

// Document returns the stable id of a document. The same project, source type
// and source id always map to the same value, which is what makes re-ingestion
// overwrite instead of duplicate.
func Document(projectKey, sourceType, sourceID string) string {
	name := strings.Join([]string{projectKey, sourceType, sourceID}, "\x00")
	return uuid.NewSHA1(documentNamespace, []byte(name)).String()
}

// Upload returns a random id for a stored upload.
func Upload() string {
	return uuid.NewString()
}
