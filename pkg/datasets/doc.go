// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

/*
Package datasets downloads, caches and extracts the public datasets used by
the example notebooks into a fixed folder next to the install directory.

# Layout

	<install>/notebooks/datasets/            datasets root
	<install>/notebooks/datasets.zip         optional pre-staged bundle
	<root>/trainingandtestdata.zip           archives are kept after extraction
	<root>/sentiment140/...
	<root>/IMDb/aclImdb/{train,test}
	<root>/lfw_home/...                      written by the face loader

# Quick Start

	err := datasets.Run(context.Background(), datasets.Settings{}, func(e datasets.ProgressEvent) {
		fmt.Printf("[%s] %s\n", e.Event, e.Message)
	})
	if err != nil {
		log.Fatal(err)
	}

# Materializing a Single Dataset

	m := datasets.NewMaterializer(nil, nil, nil)
	if err := m.Materialize(ctx, root, datasets.IMDb()); err != nil {
		log.Fatal(err)
	}

Materialization is idempotent: once the extracted root exists, later calls
only check the expected paths. An archive already present is extracted
without being downloaded again.

# Errors

Failures are reported with distinct types so callers can tell causes apart
with errors.As:

  - *ConsistencyError: an expected path is missing after extraction or verification
  - *TransportError: the download failed or returned a non-2xx status
  - *ArchiveFormatError: the archive could not be decoded
  - *FetchError: the face loader failed

Nothing is retried. Archives are not checksummed.
*/
package datasets
