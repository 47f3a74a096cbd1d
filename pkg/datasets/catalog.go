// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

// Sentiment140 describes the sentiment-labelled tweet corpus.
func Sentiment140() Descriptor {
	return Descriptor{
		Name:            "sentiment140",
		URL:             "http://cs.stanford.edu/people/alecmgo/trainingandtestdata.zip",
		ArchiveFilename: "trainingandtestdata.zip",
		ExtractedRoot:   "sentiment140",
		ExpectedPaths: []string{
			"sentiment140/training.1600000.processed.noemoticon.csv",
			"sentiment140/testdata.manual.2009.06.14.csv",
		},
		Format:     FormatZip,
		ApproxSize: "77MB",
	}
}

// IMDb describes the Large Movie Review corpus.
func IMDb() Descriptor {
	return Descriptor{
		Name:            "imdb",
		URL:             "http://ai.stanford.edu/~amaas/data/sentiment/aclImdb_v1.tar.gz",
		ArchiveFilename: "aclImdb_v1.tar.gz",
		ExtractedRoot:   "IMDb",
		ExpectedPaths: []string{
			"IMDb/aclImdb/train",
			"IMDb/aclImdb/test",
		},
		Format:     FormatTarGz,
		ApproxSize: "84.1MB",
	}
}

// Catalog returns the locally materialized datasets in the order a run
// processes them.
func Catalog() []Descriptor {
	return []Descriptor{Sentiment140(), IMDb()}
}
