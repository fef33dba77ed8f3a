package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	gan "github.com/LdDl/conv-gan-go"
	"github.com/LdDl/conv-gan-go/dcgan"
	"gorgonia.org/tensor"
)

var (
	outputFolder   = "./output"
	batchSize      = 4
	latentShape    = []int{2, 2, 32}
	imgHeight      = 32
	imgWidth       = 32
	numEpoches     = 20
	numTestSamples = 1
	evalPrint      = 5
)

func main() {
	// Initialize seed with constant value to reproduce results
	rng := rand.New(rand.NewSource(1337))

	// Prepare synthetic data
	trainDataLength := 64
	trainSet, err := gan.GenerateSyntheticImages(rng, trainDataLength, imgHeight, imgWidth)
	if err != nil {
		panic(err)
	}
	fmt.Println("Sample of real images:")
	printImage(trainSet.TrainData, 0)

	generator, err := dcgan.BuildGenerator(tensor.Shape(latentShape))
	if err != nil {
		panic(err)
	}
	discriminator, err := dcgan.BuildDiscriminator(generator.OutputShape())
	if err != nil {
		panic(err)
	}
	trainStep, err := dcgan.BuildTrainStep(generator, discriminator)
	if err != nil {
		panic(err)
	}

	/* Training process */
	// Define number of batches as
	// baches_num = train_data_num / batch_size
	batches := int(trainDataLength / batchSize)
	dLosses := make([]float64, 0, numEpoches*batches)
	gLosses := make([]float64, 0, numEpoches*batches)
	st := time.Now()
	for epoch := 0; epoch < numEpoches; epoch++ {
		var dLoss, gLoss float64
		for b := 0; b < batches; b++ {
			start := b * batchSize
			end := start + batchSize
			realSamples, err := trainSet.Batch(start, end)
			if err != nil {
				panic(err)
			}
			latentSpaceSamples := gan.NormRandDense(rng, append([]int{batchSize}, latentShape...)...)
			dLoss, gLoss, err = trainStep.Step(realSamples, latentSpaceSamples)
			if err != nil {
				panic(err)
			}
			if math.IsNaN(dLoss) || math.IsInf(dLoss, 0) || math.IsNaN(gLoss) || math.IsInf(gLoss, 0) {
				fmt.Printf("Losses are not finite on epoch %d, batch %d: discriminator %v, generator %v\n", epoch, b, dLoss, gLoss)
				os.Exit(1)
			}
			dLosses = append(dLosses, dLoss)
			gLosses = append(gLosses, gLoss)
		}
		if epoch%evalPrint == 0 {
			fmt.Printf("Epoch %d:\n", epoch)
			fmt.Printf("\tDiscriminator's loss: %v\n", dLoss)
			fmt.Printf("\tGenerator's loss: %v\n", gLoss)
			fmt.Printf("\tTaken time: %v\n", time.Since(st))
			st = time.Now()
			generated, err := generator.Generate(gan.NormRandDense(rng, append([]int{numTestSamples}, latentShape...)...))
			if err != nil {
				panic(err)
			}
			printImage(generated, 0)
		}
	}

	// Final test of Generator
	fmt.Println("Start testing generator after final epoch")
	generated, err := generator.Generate(gan.NormRandDense(rng, append([]int{numTestSamples}, latentShape...)...))
	if err != nil {
		panic(err)
	}
	printImage(generated, 0)
	scores, err := discriminator.Score(generated)
	if err != nil {
		panic(err)
	}
	fmt.Println("Probability of generated image being real:", scores.Float64s())

	err = os.MkdirAll(outputFolder, os.ModePerm)
	if err != nil {
		panic(err)
	}
	err = gan.PlotLosses(dLosses, gLosses, fmt.Sprintf("%s/dcgan_losses.png", outputFolder))
	if err != nil {
		panic(err)
	}
}

func printImage(images *tensor.Dense, idx int) {
	rows, err := gan.ASCIIPreview(images, idx, 0.0)
	if err != nil {
		panic(err)
	}
	for _, row := range rows {
		fmt.Printf("\t%s\n", strings.Join(strings.Split(row, ""), " "))
	}
}
