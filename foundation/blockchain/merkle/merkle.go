// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides an implementation of a merkle tree for binding the
// transactions of a block into a single commitment. Leaves are split at the
// midpoint of the range being hashed instead of duplicating an odd leaf, and
// a tree holding a single leaf uses that leaf's hash as the root.
package merkle

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ZeroHash is the root of a tree constructed with no values.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree. Hash returns the textual digest used as the leaf.
type Hashable[T any] interface {
	Hash() (string, error)
	Equals(other T) bool
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint.
type Tree[T Hashable[T]] struct {
	Root         *Node[T]
	Leafs        []*Node[T]
	MerkleRoot   string
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using sha256
// when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	var defaultHashStrategy = sha256.New

	t := Tree[T]{
		hashStrategy: defaultHashStrategy,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Root is a helper that returns the merkle root for the set of values
// without keeping the tree around.
func Root[T Hashable[T]](values []T) (string, error) {
	tree, err := NewTree(values)
	if err != nil {
		return "", err
	}

	return tree.MerkleRoot, nil
}

// Generate constructs the leafs and nodes of the tree from the specified
// data. If the tree has been generated previously, the tree is re-generated
// from scratch.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		t.Root = nil
		t.Leafs = nil
		t.MerkleRoot = ZeroHash
		return nil
	}

	leafs := make([]*Node[T], 0, len(values))
	for _, value := range values {
		hash, err := value.Hash()
		if err != nil {
			return err
		}

		leafs = append(leafs, &Node[T]{
			Hash:  hash,
			Value: value,
			leaf:  true,
			Tree:  t,
		})
	}

	root, err := buildRange(leafs, 0, len(leafs)-1, t)
	if err != nil {
		return err
	}

	t.Root = root
	t.Leafs = leafs
	t.MerkleRoot = root.Hash

	return nil
}

// Rebuild is a helper function that will rebuild the tree reusing only the
// data that it currently holds in the leaves.
func (t *Tree[T]) Rebuild() error {
	return t.Generate(t.Values())
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving a value is in the tree.
//
// For the tree [A, B, C] the root is hash(hash(A+B) + C). The proof for A
// is ["B", "C"] with order [1, 1] which means:
//
//	step1 = hash(A + proof[0])      -- Order 1 says proof comes second.
//	root  = hash(step1 + proof[1])  -- Order 1 says proof comes second.
//
// A tree with a single leaf has an empty proof since the leaf is the root.
func (t *Tree[T]) Proof(data T) ([]string, []int64, error) {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		var merkleProof []string
		var order []int64
		nodeParent := node.Parent

		for nodeParent != nil {
			if nodeParent.Left == node {
				merkleProof = append(merkleProof, nodeParent.Right.Hash)
				order = append(order, 1) // right leaf, concat second.
			} else {
				merkleProof = append(merkleProof, nodeParent.Left.Hash)
				order = append(order, 0) // left leaf, concat first.
			}
			node = nodeParent
			nodeParent = nodeParent.Parent
		}

		return merkleProof, order, nil
	}

	return nil, nil, errors.New("unable to find data in tree")
}

// VerifyProof applies the proof produced by Proof to the leaf hash and
// reports whether the result matches the expected root.
func (t *Tree[T]) VerifyProof(leaf string, proof []string, order []int64, root string) (bool, error) {
	if len(proof) != len(order) {
		return false, errors.New("proof and order length mismatch")
	}

	current := leaf
	for i := range proof {
		var err error
		switch order[i] {
		case 0:
			current, err = t.combine(proof[i], current)
		default:
			current, err = t.combine(current, proof[i])
		}
		if err != nil {
			return false, err
		}
	}

	return current == root, nil
}

// Verify validates the hashes at each level of the tree and returns an error
// if the resulting hash at the root of the tree doesn't match the root hash.
func (t *Tree[T]) Verify() error {
	if t.Root == nil {
		if t.MerkleRoot != ZeroHash {
			return errors.New("root hash invalid")
		}
		return nil
	}

	calculatedMerkleRoot, err := t.Root.verify()
	if err != nil {
		return err
	}

	if t.MerkleRoot != calculatedMerkleRoot {
		return errors.New("root hash invalid")
	}

	return nil
}

// VerifyData indicates whether a given piece of data is in the tree and if the
// hashes are valid for that data. Returns nil if the expected merkle root is
// equivalent to the merkle root calculated on the critical path for a given
// piece of data.
func (t *Tree[T]) VerifyData(data T) error {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		currentParent := node.Parent
		for currentParent != nil {
			rightHash, err := currentParent.Right.CalculateHash()
			if err != nil {
				return err
			}

			leftHash, err := currentParent.Left.CalculateHash()
			if err != nil {
				return err
			}

			h, err := t.combine(leftHash, rightHash)
			if err != nil {
				return err
			}

			if h != currentParent.Hash {
				return errors.New("merkle root is not equivalent to the merkle root calculated on the critical path")
			}

			currentParent = currentParent.Parent
		}

		return nil
	}

	return errors.New("data is not part of the tree")
}

// Values returns the slice of values stored in the tree in leaf order.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, node := range t.Leafs {
		values = append(values, node.Value)
	}

	return values
}

// RootHex returns the merkle root which is already hex encoded.
func (t *Tree[T]) RootHex() string {
	return t.MerkleRoot
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree[T]) String() string {
	s := ""

	for _, l := range t.Leafs {
		s += fmt.Sprint(l)
		s += "\n"
	}

	return s
}

// MarshalText implements the TextMarshaler interface and produces a panic
// if anyone tries to marshal the Merkle tree. I don't want this to happen.
// Use the Values function to return a slice that can be marshaled.
func (t *Tree[T]) MarshalText() (text []byte, err error) {
	panic("do not marshal the merkle tree, use Values")
}

// combine hashes the concatenation of two textual digests.
func (t *Tree[T]) combine(left string, right string) (string, error) {
	h := t.hashStrategy()
	if _, err := h.Write([]byte(left + right)); err != nil {
		return "", err
	}

	return hexutil.Encode(h.Sum(nil)), nil
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to its
// immediate relationships, a hash, the data if it is a leaf, and other metadata.
type Node[T Hashable[T]] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   string
	Value  T
	leaf   bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() (string, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	rightHash, err := n.Right.verify()
	if err != nil {
		return "", err
	}

	leftHash, err := n.Left.verify()
	if err != nil {
		return "", err
	}

	return n.Tree.combine(leftHash, rightHash)
}

// CalculateHash is a helper function that calculates the hash of the node.
func (n *Node[T]) CalculateHash() (string, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	return n.Tree.combine(n.Left.Hash, n.Right.Hash)
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %s %v", n.leaf, n.Hash, n.Value)
}

// =============================================================================

// buildRange constructs the part of the tree covering leafs[start:end+1] and
// returns the node at the top of that range. One leaf is returned as is, two
// leafs are joined, anything larger is split at the midpoint with the left
// half including the midpoint.
func buildRange[T Hashable[T]](nl []*Node[T], start int, end int, t *Tree[T]) (*Node[T], error) {
	switch end - start + 1 {
	case 1:
		return nl[start], nil

	case 2:
		return join(nl[start], nl[end], t)
	}

	mid := (start + end) >> 1

	left, err := buildRange(nl, start, mid, t)
	if err != nil {
		return nil, err
	}

	right, err := buildRange(nl, mid+1, end, t)
	if err != nil {
		return nil, err
	}

	return join(left, right, t)
}

// join creates the parent node for the two specified nodes.
func join[T Hashable[T]](left *Node[T], right *Node[T], t *Tree[T]) (*Node[T], error) {
	hash, err := t.combine(left.Hash, right.Hash)
	if err != nil {
		return nil, err
	}

	n := Node[T]{
		Left:  left,
		Right: right,
		Hash:  hash,
		Tree:  t,
	}

	left.Parent = &n
	right.Parent = &n

	return &n, nil
}
