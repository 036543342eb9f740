package service_test

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/service"
	"github.com/stemsi/exquiz-backend/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestMain(m *testing.M) {
	validator.Setup()
	os.Exit(m.Run())
}

func newBucketFixture(t *testing.T) (*service.BucketService, *memBucketStore, int) {
	t.Helper()
	store := newMemBucketStore()
	svc := service.NewBucketService(store, zerolog.Nop())
	b, err := svc.Create(context.Background(), model.CreateBucketRequest{Name: "Biology", Subject: "science"})
	require.NoError(t, err)
	return svc, store, b.ID
}

const importCSV = `question,option_a,option_b,option_c,option_d,correct_answer,difficulty,points,tags
What carries oxygen?,Plasma,Red cells,Platelets,Lymph,B,easy,,blood;cells
Powerhouse of the cell?,Nucleus,Ribosome,Mitochondria,Golgi,2,medium,3,
Largest organ?,Liver,Skin,Heart,Lung,Skin,HARD,,
Broken row,Only,,,,A,easy,,
,,,,,,,,
Bad difficulty?,a,b,c,d,A,extreme,,
`

func TestImport_CSV(t *testing.T) {
	svc, store, bucketID := newBucketFixture(t)

	report, err := svc.Import(context.Background(), bucketID, service.ImportFormatCSV, strings.NewReader(importCSV))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Imported)
	assert.Equal(t, 2, report.Skipped)
	assert.Contains(t, report.Errors, "5")
	assert.Contains(t, report.Errors, "7")
	require.NotNil(t, report.Bucket)
	assert.Equal(t, 1, report.Bucket.EasyCount)
	assert.Equal(t, 1, report.Bucket.MediumCount)
	assert.Equal(t, 1, report.Bucket.HardCount)
	assert.Equal(t, 3, report.Bucket.TotalQuestions)

	qs, err := store.ListQuestions(context.Background(), bucketID, model.BucketQuestionFilter{})
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.Equal(t, 1, qs[0].CorrectAnswer)
	assert.Equal(t, []string{"blood", "cells"}, qs[0].Tags)
	assert.Equal(t, service.DefaultPointsPerQuestion, qs[0].Points)
	assert.Equal(t, 3, qs[1].Points)
	assert.Equal(t, "Skin", qs[2].Options[qs[2].CorrectAnswer])
}

func TestImport_XLSX(t *testing.T) {
	svc, _, bucketID := newBucketFixture(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"difficulty", "question", "option_a", "option_b", "option_c", "option_d", "correct_answer"},
		{"easy", "1+1?", "1", "2", "3", "4", "B"},
		{"hard", "d/dx x^2?", "x", "2x", "x^2", "2", "2x"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	report, err := svc.Import(context.Background(), bucketID, service.ImportFormatXLSX, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Zero(t, report.Skipped)
	assert.Nil(t, report.Errors)
	assert.Equal(t, 1, report.Bucket.HardCount)
}

func TestImport_Rejections(t *testing.T) {
	svc, _, bucketID := newBucketFixture(t)
	ctx := context.Background()
	var verr *service.ValidationError

	_, err := svc.Import(ctx, bucketID, service.ImportFormatCSV, strings.NewReader("question,option_a\nx,y\n"))
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["file"], "missing column")

	_, err = svc.Import(ctx, bucketID, service.ImportFormatCSV, strings.NewReader(""))
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Import(ctx, bucketID, "pdf", strings.NewReader(importCSV))
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Import(ctx, 999, service.ImportFormatCSV, strings.NewReader(importCSV))
	assert.ErrorIs(t, err, service.ErrBucketNotFound)
}

func TestBucketQuestions_CountsFollowWrites(t *testing.T) {
	svc, _, bucketID := newBucketFixture(t)
	ctx := context.Background()

	correct := 0
	req := model.BucketQuestionRequest{
		Text:          "Which is a mammal?",
		Options:       []string{"Whale", "Shark"},
		CorrectAnswer: &correct,
		Difficulty:    "easy",
	}
	q, b, err := svc.AddQuestion(ctx, bucketID, req)
	require.NoError(t, err)
	assert.Equal(t, 1, b.EasyCount)

	req.Difficulty = "hard"
	_, b, err = svc.UpdateQuestion(ctx, bucketID, q.ID, req)
	require.NoError(t, err)
	assert.Zero(t, b.EasyCount)
	assert.Equal(t, 1, b.HardCount)

	b, err = svc.DeactivateQuestion(ctx, bucketID, q.ID)
	require.NoError(t, err)
	assert.Zero(t, b.TotalQuestions)

	_, err = svc.DeactivateQuestion(ctx, bucketID, 4242)
	assert.ErrorIs(t, err, service.ErrQuestionNotFound)

	bad := 5
	req.CorrectAnswer = &bad
	_, _, err = svc.AddQuestion(ctx, bucketID, req)
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)
}
