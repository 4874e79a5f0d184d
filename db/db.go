// Package db keeps practice-result history in DynamoDB. Side channel only:
// the core never reads it, the report command does.
package db

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	log "github.com/sirupsen/logrus"

	"github.com/jsphweid/keydrill/constants"
	"github.com/jsphweid/keydrill/model"
)

type Result struct {
	AttemptID  string
	Program    string
	Step       string
	Verdict    string
	NotesHeard int
	At         time.Time
}

type Store struct {
	client *dynamodb.DynamoDB
	table  string
}

func NewStore() (*Store, error) {
	endpoint := constants.GetDynamoEndpoint()
	sess, err := session.NewSession(&aws.Config{
		Region:   aws.String("localhost"),
		Endpoint: &endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("db: creating session: %w", err)
	}
	return &Store{
		client: dynamodb.New(sess),
		table:  constants.GetResultsTable(),
	}, nil
}

// Record implements program.Recorder. History is best-effort; a write
// failure is logged and the drill keeps going.
func (s *Store) Record(program, step string, v model.Verdict) {
	item := map[string]*dynamodb.AttributeValue{
		"PK":         {S: aws.String(v.AttemptID)},
		"Program":    {S: aws.String(program)},
		"Step":       {S: aws.String(step)},
		"Verdict":    {S: aws.String(v.Kind.String())},
		"NotesHeard": {N: aws.String(strconv.Itoa(v.NotesHeard))},
		"At":         {S: aws.String(time.Now().UTC().Format(time.RFC3339))},
	}
	if v.Diagnosis != nil {
		item["Diagnosis"] = &dynamodb.AttributeValue{S: aws.String(v.Diagnosis.String())}
	}
	_, err := s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		log.WithError(err).Warn("could not record result")
	}
}

// GetResults scans the history, optionally filtered to one program.
func (s *Store) GetResults(program string) ([]Result, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.table)}
	if program != "" {
		input.FilterExpression = aws.String("Program = :p")
		input.ExpressionAttributeValues = map[string]*dynamodb.AttributeValue{
			":p": {S: aws.String(program)},
		}
	}

	var res []Result
	err := s.client.ScanPages(input, func(page *dynamodb.ScanOutput, last bool) bool {
		for _, item := range page.Items {
			r := Result{
				AttemptID: strAttr(item, "PK"),
				Program:   strAttr(item, "Program"),
				Step:      strAttr(item, "Step"),
				Verdict:   strAttr(item, "Verdict"),
			}
			if n := item["NotesHeard"]; n != nil && n.N != nil {
				heard, _ := strconv.Atoi(*n.N)
				r.NotesHeard = heard
			}
			if at := strAttr(item, "At"); at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err == nil {
					r.At = parsed
				}
			}
			res = append(res, r)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("db: scanning results: %w", err)
	}
	return res, nil
}

func strAttr(item map[string]*dynamodb.AttributeValue, name string) string {
	if v := item[name]; v != nil && v.S != nil {
		return *v.S
	}
	return ""
}
