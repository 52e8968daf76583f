package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/whitekid/goxp/fx"
)

func DBName(name string) string {
	return strings.ToLower(strings.NewReplacer(
		"/", "_",
		":", "_",
		"#", "_",
	).Replace(name))
}

// ForEachSQLDriver run testfn for each database driver.
// sqlite always runs on a temporary file; mysql and postgresql run when
// FSCA_TEST_SQL_MYSQL or FSCA_TEST_SQL_PGSQL holds a database url.
func ForEachSQLDriver(t *testing.T, testfn func(t *testing.T, dbURL string)) {
	fx.ForEach([]string{"sqlite", "mysql", "pgsql"}, func(_ int, driver string) {
		ForOneSQLDriver(t, driver, testfn)
	})
}

func ForOneSQLDriver(t *testing.T, driver string, testfn func(t *testing.T, dbURL string)) {
	t.Run(driver, func(t *testing.T) {
		dburl := ""

		switch driver {
		case "sqlite":
			dburl = fmt.Sprintf("sqlite://%s", filepath.Join(t.TempDir(), DBName(t.Name())+".db"))

		default:
			dburl = os.Getenv("FSCA_TEST_SQL_" + strings.ToUpper(driver))
			if dburl == "" {
				t.Skip("skip driver " + driver)
			}
		}

		testfn(t, dburl)
	})
}
