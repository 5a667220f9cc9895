package encoder

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"petmatch/internal/adapter/analyzer"
	"petmatch/internal/domain"
	"petmatch/internal/port"
)

func approx(a float32, b float64) bool {
	return math.Abs(float64(a)-b) < 1e-4
}

func TestTFIDF_FitTransform(t *testing.T) {
	enc := NewTFIDF(analyzer.NewTokenizer(false), 4)

	vectors, err := enc.FitTransform([]string{"dog brown", "dog white"})
	if err != nil {
		t.Fatalf("FitTransform: %v", err)
	}

	if got := enc.Vocabulary(); !reflect.DeepEqual(got, []string{"brown", "dog", "white"}) {
		t.Fatalf("vocabulary = %v", got)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}

	// idf(dog) = ln(3/3)+1 = 1, idf(brown) = ln(3/2)+1
	want := []float64{0.81480, 0.57974, 0, 0}
	for i, w := range want {
		if !approx(vectors[0][i], w) {
			t.Errorf("vectors[0][%d] = %f, want %f", i, vectors[0][i], w)
		}
	}
	if !approx(vectors[1][2], 0.81480) || !approx(vectors[1][1], 0.57974) {
		t.Errorf("unexpected second vector %v", vectors[1])
	}
}

func TestTFIDF_FixedWidth(t *testing.T) {
	enc := NewTFIDF(analyzer.NewTokenizer(false), 16)

	vectors, err := enc.FitTransform([]string{"alpha beta", "gamma"})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vectors {
		if len(v) != 16 {
			t.Errorf("vector %d has width %d, want 16", i, len(v))
		}
	}

	more, err := enc.Transform([]string{"alpha delta"})
	if err != nil {
		t.Fatal(err)
	}
	if len(more[0]) != 16 {
		t.Errorf("transform width %d, want 16", len(more[0]))
	}
}

func TestTFIDF_UnitNorm(t *testing.T) {
	enc := NewTFIDF(analyzer.NewTokenizer(false), 32)

	vectors, err := enc.FitTransform([]string{
		"311300201800001 2023 갈색 수컷 믹스견 서울 온순함 공원",
		"311300201800002 2021 흰색 암컷 푸들 부산 겁많음 시장",
		"311300201800001 2022 갈색 암컷 믹스견 서울 활발함 주택가",
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vectors {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("vector %d norm^2 = %f, want 1", i, sum)
		}
	}
}

func TestTFIDF_MaxFeatures(t *testing.T) {
	enc := NewTFIDF(analyzer.NewTokenizer(false), 2)

	_, err := enc.FitTransform([]string{"cat cat dog", "cat dog bird", "fish"})
	if err != nil {
		t.Fatal(err)
	}
	if got := enc.Vocabulary(); !reflect.DeepEqual(got, []string{"cat", "dog"}) {
		t.Errorf("vocabulary = %v, want [cat dog]", got)
	}
}

func TestTFIDF_OutOfVocabulary(t *testing.T) {
	enc := NewTFIDF(analyzer.NewTokenizer(false), 8)

	if _, err := enc.FitTransform([]string{"dog brown"}); err != nil {
		t.Fatal(err)
	}
	vectors, err := enc.Transform([]string{"parrot green"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	for _, x := range vectors[0] {
		if x != 0 {
			t.Fatalf("expected all-zero vector for unseen terms, got %v", vectors[0])
		}
	}
}

func TestTFIDF_StateMachine(t *testing.T) {
	enc := NewTFIDF(analyzer.NewTokenizer(false), 8)

	if enc.State() != port.EncoderUnfit {
		t.Fatalf("new encoder state = %v, want unfit", enc.State())
	}
	if _, err := enc.Transform([]string{"dog"}); !errors.Is(err, domain.ErrEncoderNotFit) {
		t.Errorf("Transform before fit: err = %v, want ErrEncoderNotFit", err)
	}

	if _, err := enc.FitTransform([]string{"dog brown"}); err != nil {
		t.Fatal(err)
	}
	if enc.State() != port.EncoderFit {
		t.Fatalf("state after fit = %v, want fit", enc.State())
	}
	if _, err := enc.FitTransform([]string{"cat"}); !errors.Is(err, domain.ErrAlreadyFit) {
		t.Errorf("second FitTransform: err = %v, want ErrAlreadyFit", err)
	}

	enc.Reset()
	if enc.State() != port.EncoderUnfit {
		t.Fatalf("state after reset = %v, want unfit", enc.State())
	}
	if _, err := enc.FitTransform([]string{"cat white"}); err != nil {
		t.Errorf("FitTransform after reset: %v", err)
	}
}

func TestTFIDF_EmptyVocabulary(t *testing.T) {
	enc := NewTFIDF(analyzer.NewTokenizer(false), 8)

	if _, err := enc.FitTransform([]string{"", "a b"}); !errors.Is(err, domain.ErrEmptyVocabulary) {
		t.Errorf("err = %v, want ErrEmptyVocabulary", err)
	}
	if enc.State() != port.EncoderUnfit {
		t.Errorf("failed fit must leave the encoder unfit")
	}
}
