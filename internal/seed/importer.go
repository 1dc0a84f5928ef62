// Package seed はデフォルトユーザーのCSV一括投入を提供する。
package seed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hitoshi/lunchdraw/internal/model"
	"github.com/hitoshi/lunchdraw/internal/repository"
)

// Importer はデフォルトユーザーのCSVインポータ。
// CSVのフォーマットはヘッダー行付きの "username,canInitiateSession"。
type Importer struct {
	userRepo repository.UserRepository
}

// NewImporter はImporterを生成する。
func NewImporter(userRepo repository.UserRepository) *Importer {
	return &Importer{userRepo: userRepo}
}

// Result はインポートの実行結果。
type Result struct {
	Created int
	Skipped int
}

// ImportFile は指定パスのCSVファイルからデフォルトユーザーを投入する。
func (i *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open default users file: %w", err)
	}
	defer f.Close()

	return i.Import(ctx, f)
}

// Import はCSVを読み込み、未登録のユーザーを作成する。
// すでに存在するユーザーは警告ログを出してスキップする（冪等）。
// 作成されるユーザーのcreated_byはSYSTEM。
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	result := &Result{}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read default users CSV at line %d: %w", line+1, err)
		}
		line++

		// ヘッダー行をスキップ
		if line == 1 {
			continue
		}

		username := strings.TrimSpace(record[0])
		if username == "" {
			return nil, fmt.Errorf("empty username in default users CSV at line %d", line)
		}

		canInitiate, err := strconv.ParseBool(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid canInitiateSession value %q at line %d: %w", record[1], line, err)
		}

		existing, err := i.userRepo.FindByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing user %q: %w", username, err)
		}
		if existing != nil {
			slog.Warn("user already exists, skipping",
				slog.String("username", username),
			)
			result.Skipped++
			continue
		}

		user := &model.User{
			Username:           username,
			CanInitiateSession: canInitiate,
			CreatedBy:          model.SystemUsername,
		}
		if err := i.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user %q: %w", username, err)
		}

		slog.Info("user created",
			slog.String("username", username),
			slog.Bool("can_initiate_session", canInitiate),
		)
		result.Created++
	}

	slog.Info("default users import completed",
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}
