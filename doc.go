// Copyright 2023 uhppoted@twyst.co.za. All rights reserved.
// Use of this source code is governed by an MIT-style license
// that can be found in the LICENSE file.

/*
Package uhppoted-app-sync synchronises a locally exported lead list (TSV, CSV or XLSX) with a
Google Sheets worksheet using a service account.

uhppoted-app-sync can be used from the command line but is really intended to be run from a cron job. Each
run is a single idempotent pass: records missing from the worksheet are appended, worksheet rows older
than the local record are updated and unchanged rows are left alone. Every run is written to an
append-only run log that ends with either SUCCESS or FAILURE: <reason>, and the exit code identifies the
failure reason.

uhppoted-app-sync supports the following commands:

  - sync, to synchronise the local export with the worksheet
  - setup, to initialise the worksheet header row
  - get, to download the worksheet as a TSV file
  - version, to display the current version
*/
package sync
