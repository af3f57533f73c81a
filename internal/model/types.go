package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one evolution run and its outcome.
type RunRecord struct {
	VersionedRecord
	ID                   string  `json:"id"`
	CreatedAtUTC         string  `json:"created_at_utc"`
	Scape                string  `json:"scape"`
	Seed                 int64   `json:"seed"`
	PopulationSize       int     `json:"population_size"`
	Generations          int     `json:"generations"`
	Word                 int     `json:"word"`
	Count                int     `json:"count"`
	MutationProbability  float64 `json:"mutation_probability"`
	Divisor              float64 `json:"divisor,omitempty"`
	EliteCount           int     `json:"elite_count"`
	Shuffle              string  `json:"shuffle"`
	FitnessPostprocessor string  `json:"fitness_postprocessor,omitempty"`
	FitnessGoal          float64 `json:"fitness_goal,omitempty"`
	CompletedGenerations int     `json:"completed_generations"`
	Evaluations          int     `json:"evaluations"`
	FinalBestFitness     float64 `json:"final_best_fitness"`
}

type GenerationDiagnostics struct {
	Generation    int     `json:"generation"`
	BestFitness   float64 `json:"best_fitness"`
	MeanFitness   float64 `json:"mean_fitness"`
	MinFitness    float64 `json:"min_fitness"`
	StdDevFitness float64 `json:"std_dev_fitness"`
	WheelSize     int     `json:"wheel_size"`
	Selectable    int     `json:"selectable"`
	Diversity     int     `json:"diversity"`
}

// ChromosomeRecord is the persisted form of a chromosome; Genes holds the
// bit string as '0'/'1' characters.
type ChromosomeRecord struct {
	VersionedRecord
	ID                  string  `json:"id"`
	Generation          int     `json:"generation"`
	Word                int     `json:"word"`
	Count               int     `json:"count"`
	Genes               string  `json:"genes"`
	Divisor             float64 `json:"divisor"`
	MutationProbability float64 `json:"mutation_probability"`
	Fitness             float64 `json:"fitness"`
}

type TopChromosomeRecord struct {
	Rank       int              `json:"rank"`
	Chromosome ChromosomeRecord `json:"chromosome"`
}

type LineageRecord struct {
	VersionedRecord
	ChromosomeID   string   `json:"chromosome_id"`
	ParentIDs      []string `json:"parent_ids,omitempty"`
	Generation     int      `json:"generation"`
	Operation      string   `json:"operation"`
	CrossoverPoint int      `json:"crossover_point,omitempty"`
	MutatedBit     int      `json:"mutated_bit"`
}
