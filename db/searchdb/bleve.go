package searchdb

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/driveindex/config"
	"github.com/meghashyamc/driveindex/logger"
)

// IndexingBatchSize is the number of documents written per bleve batch.
const IndexingBatchSize = 100

const (
	indexFieldName      = "name"
	indexFieldPath      = "path"
	indexFieldExtension = "extension"
	indexFieldSize      = "size"
	indexFieldModTime   = "mod_time"
)

var quotedPhraseRegex = regexp.MustCompile(`"([^"]*)"`)

type BleveDB struct {
	indexPath string
	logger    logger.Logger
	index     bleve.Index
}

func New(logger logger.Logger, cfg *config.Config) (*BleveDB, error) {
	if cfg.GetIndexPath() == "" {
		return NewInMemory(logger)
	}

	mapping := createIndexMapping()
	indexPath := filepath.Join(cfg.GetStoragePath(), cfg.GetIndexPath())
	index, err := bleve.New(indexPath, mapping)
	if err != nil {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Error("could not open index", "err", err.Error())
			return nil, err
		}
	}
	return &BleveDB{indexPath: indexPath, logger: logger, index: index}, nil
}

func NewInMemory(logger logger.Logger) (*BleveDB, error) {
	index, err := bleve.NewMemOnly(createIndexMapping())
	if err != nil {
		logger.Error("could not create in-memory index", "err", err.Error())
		return nil, err
	}
	return &BleveDB{logger: logger, index: index}, nil
}

func (b *BleveDB) BuildIndex(documents []Document) error {

	batch := b.index.NewBatch()

	for i, doc := range documents {

		err := batch.Index(doc.ID, doc)
		if err != nil {
			b.logger.Error("could not index document", "err", err.Error())
			return err
		}

		if (i+1)%IndexingBatchSize == 0 {
			err = b.index.Batch(batch)
			if err != nil {
				return err
			}
			batch = b.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			b.logger.Error("could not index document", "err", err.Error())
			return err
		}
	}

	return nil
}

func createIndexMapping() mapping.IndexMapping {

	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Path field - analyzed so that directory names match
	pathFieldMapping := bleve.NewTextFieldMapping()
	pathFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(indexFieldPath, pathFieldMapping)

	// Name field - analyzed for partial matching
	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(indexFieldName, nameFieldMapping)

	// Extension field - not analyzed (exact match)
	extensionFieldMapping := bleve.NewTextFieldMapping()
	extensionFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(indexFieldExtension, extensionFieldMapping)

	sizeFieldMapping := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt(indexFieldSize, sizeFieldMapping)

	modTimeFieldMapping := bleve.NewDateTimeFieldMapping()
	docMapping.AddFieldMappingsAt(indexFieldModTime, modTimeFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

func (b *BleveDB) Search(queryString string, limit int, offset int) (*Response, error) {
	start := time.Now()

	searchQuery := b.buildSearchQuery(queryString)

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, limit, offset, false)

	searchRequest.Fields = []string{indexFieldPath, indexFieldName, indexFieldExtension, indexFieldSize, indexFieldModTime}

	searchResult, err := b.index.Search(searchRequest)
	if err != nil {
		b.logger.Error("search failed", "err", err.Error())
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, len(searchResult.Hits))
	for i, hit := range searchResult.Hits {
		result := Result{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if path, ok := hit.Fields[indexFieldPath].(string); ok {
			result.Path = path
		}
		if name, ok := hit.Fields[indexFieldName].(string); ok {
			result.Name = name
		}
		if extension, ok := hit.Fields[indexFieldExtension].(string); ok {
			result.Extension = extension
		}
		if size, ok := hit.Fields[indexFieldSize].(float64); ok {
			result.Size = uint64(size)
		}
		if modTime, ok := hit.Fields[indexFieldModTime].(string); ok {
			result.ModTime = modTime
		}

		results[i] = result
	}

	searchTime := time.Since(start)

	response := &Response{
		Results:    results,
		Total:      searchResult.Total,
		MaxScore:   searchResult.MaxScore,
		SearchTime: searchTime.String(),
	}

	return response, nil
}

func (b *BleveDB) buildSearchQuery(queryString string) query.Query {

	const (
		boostForFileName     = 3.0
		boostForExtension    = 2.0
		boostForPath         = 1.0
		boostForPhraseMatch  = 5.0
		boostForPartialMatch = 1.5
	)

	queryString = strings.ToLower(strings.TrimSpace(queryString))

	if queryString == "" {
		return bleve.NewMatchAllQuery()
	}

	quotedPhrases, remaining := parseQuotedQuery(queryString)

	disjunctQuery := bleve.NewDisjunctionQuery()

	for _, phrase := range quotedPhrases {
		namePhraseQuery := bleve.NewMatchPhraseQuery(phrase)
		namePhraseQuery.SetField(indexFieldName)
		namePhraseQuery.SetBoost(boostForPhraseMatch)
		disjunctQuery.AddQuery(namePhraseQuery)

		pathPhraseQuery := bleve.NewMatchPhraseQuery(phrase)
		pathPhraseQuery.SetField(indexFieldPath)
		pathPhraseQuery.SetBoost(boostForPhraseMatch)
		disjunctQuery.AddQuery(pathPhraseQuery)
	}

	if remaining == "" {
		return disjunctQuery
	}

	nameQuery := bleve.NewMatchQuery(remaining)
	nameQuery.SetField(indexFieldName)
	nameQuery.SetBoost(boostForFileName)
	disjunctQuery.AddQuery(nameQuery)

	pathQuery := bleve.NewMatchQuery(remaining)
	pathQuery.SetField(indexFieldPath)
	pathQuery.SetBoost(boostForPath)
	disjunctQuery.AddQuery(pathQuery)

	extensionQuery := bleve.NewTermQuery(strings.TrimPrefix(remaining, "."))
	extensionQuery.SetField(indexFieldExtension)
	extensionQuery.SetBoost(boostForExtension)
	disjunctQuery.AddQuery(extensionQuery)

	if len(remaining) > 2 {
		prefixQuery := bleve.NewPrefixQuery(remaining)
		prefixQuery.SetField(indexFieldName)
		prefixQuery.SetBoost(boostForPartialMatch)
		disjunctQuery.AddQuery(prefixQuery)
	}

	return disjunctQuery
}

// parseQuotedQuery splits `"exact phrase" other terms` into its quoted phrases
// and the remaining unquoted terms.
func parseQuotedQuery(queryString string) ([]string, string) {
	var quoted []string
	for _, match := range quotedPhraseRegex.FindAllStringSubmatch(queryString, -1) {
		if phrase := strings.TrimSpace(match[1]); phrase != "" {
			quoted = append(quoted, phrase)
		}
	}

	remaining := quotedPhraseRegex.ReplaceAllString(queryString, " ")
	remaining = strings.Join(strings.Fields(remaining), " ")

	return quoted, remaining
}

func (b *BleveDB) DeleteDocuments(documentIDs []string) error {
	batch := b.index.NewBatch()

	for i, docID := range documentIDs {
		batch.Delete(docID)

		if (i+1)%IndexingBatchSize == 0 {
			err := b.index.Batch(batch)
			if err != nil {
				return err
			}
			batch = b.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			b.logger.Error("could not delete documents", "err", err.Error())
			return err
		}
	}

	return nil
}

// DocumentIDs lists the IDs of every indexed document, ordered by ID.
func (b *BleveDB) DocumentIDs() ([]string, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, count)
	for offset := 0; offset < int(count); offset += IndexingBatchSize {
		request := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), IndexingBatchSize, offset, false)
		request.SortBy([]string{"_id"})
		result, err := b.index.Search(request)
		if err != nil {
			b.logger.Error("could not list documents", "err", err.Error())
			return nil, err
		}
		if len(result.Hits) == 0 {
			break
		}
		for _, hit := range result.Hits {
			ids = append(ids, hit.ID)
		}
	}

	return ids, nil
}

func (b *BleveDB) GetDocCount() (uint64, error) {
	return b.index.DocCount()
}

func (b *BleveDB) Close() error {

	if b.index != nil {
		if err := b.index.Close(); err != nil {
			b.logger.Error("could not close search index", "err", err.Error())
			return err
		}
	}
	return nil
}
