package data

import (
	"database/sql"
	"embed"
	"os"
	"regexp"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const (
	DataFileName string = "data.db"

	multiSpaceRegex string = `\s+`
)

var (
	//go:embed sql/*
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")

	spaceRegEx = regexp.MustCompile(multiSpaceRegex)
)

// Init initializes the database for a given path, creating the schema
// and seeding the country reference data on first use.
func Init(dbFilePath string) error {
	if dbFilePath == "" {
		return errors.New("dbFilePath not specified")
	}

	if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		db, err := GetDB(dbFilePath)
		if err != nil {
			return errors.Wrapf(err, "error opening database: %s", dbFilePath)
		}
		defer db.Close()

		log.Debug("creating db schema...")
		for _, name := range []string{"sql/ddl.sql", "sql/seed.sql"} {
			b, err := f.ReadFile(name)
			if err != nil {
				return errors.Wrapf(err, "failed to read schema file: %s", name)
			}
			if _, err := db.Exec(string(b)); err != nil {
				return errors.Wrapf(err, "failed to apply %s in: %s", name, dbFilePath)
			}
		}
		log.Debug("db schema created")
	}

	return nil
}

func GetDB(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", path)
	}
	// sqlite allows a single writer, serialize here rather than
	// surfacing busy errors to concurrent stages
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Contains checks for val in list
func Contains[T comparable](list []T, val T) bool {
	if list == nil {
		return false
	}
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
